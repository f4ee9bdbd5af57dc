package dataset

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/fetcher"
	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/resilience"
)

// importBatchSize bounds how many entities go to the store per upsert
// call.
const importBatchSize = 500

// downloader is the subset of fetcher behavior the importer needs; both
// the HTTP and FTP fetchers provide it.
type downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ImportOptions configures one import run.
type ImportOptions struct {
	Source      string // local path or http(s)/ftp URL
	Format      string // "csv", "xlsx", "json", "xml" or "zip"; empty = detect from extension
	Delimiter   rune   // CSV delimiter, default ','
	SheetName   string // XLSX sheet, default first
	SkipRows    int    // XLSX rows to skip before data, default 1 (the header)
	ElementName string // XML record element, default "entity"
	Replace     bool   // replace the whole dataset instead of upserting
}

// ImportStats summarizes one import run.
type ImportStats struct {
	Source   string        `json:"source"`
	Read     int           `json:"read"`
	Imported int64         `json:"imported"`
	Skipped  int           `json:"skipped"`
	Version  int64         `json:"version"`
	Took     time.Duration `json:"took"`
}

// FetchSettings tunes the importer's remote downloads. Zero fields use
// the fetcher defaults.
type FetchSettings struct {
	Timeout   time.Duration
	UserAgent string
	Retries   int
}

// Importer loads watchlist source files into the reference store,
// bumps the dataset version, and records the run in the sync log.
type Importer struct {
	store Store
	http  downloader
	ftp   downloader
}

// NewImporter creates an Importer whose HTTP and FTP fetchers honor
// fetch.
func NewImporter(store Store, fetch FetchSettings) *Importer {
	return &Importer{
		store: store,
		http: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: fetch.UserAgent,
			Timeout:   fetch.Timeout,
			Retry:     resilience.Policy{Attempts: fetch.Retries},
		}),
		ftp: fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: fetch.Timeout}),
	}
}

// Import runs one import end to end. On success the dataset version is
// bumped exactly once, after all rows are stored.
func (im *Importer) Import(ctx context.Context, opts ImportOptions) (*ImportStats, error) {
	started := time.Now().UTC()
	rec := SyncRecord{
		ID:        uuid.New().String(),
		Source:    opts.Source,
		Status:    SyncRunning,
		StartedAt: started,
	}
	if err := im.store.RecordSync(ctx, rec); err != nil {
		return nil, err
	}

	stats, err := im.run(ctx, opts)
	finished := time.Now().UTC()
	rec.FinishedAt = &finished

	if err != nil {
		rec.Status = SyncFailed
		rec.Error = err.Error()
		if logErr := im.store.RecordSync(ctx, rec); logErr != nil {
			zap.L().Warn("importer: record failed sync", zap.Error(logErr))
		}
		return nil, err
	}

	rec.Status = SyncComplete
	rec.Entities = int(stats.Imported)
	rec.Version = stats.Version
	if logErr := im.store.RecordSync(ctx, rec); logErr != nil {
		zap.L().Warn("importer: record sync", zap.Error(logErr))
	}

	stats.Took = finished.Sub(started)
	zap.L().Info("importer: import complete",
		zap.String("source", opts.Source),
		zap.Int("read", stats.Read),
		zap.Int64("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Int64("version", stats.Version),
	)
	return stats, nil
}

func (im *Importer) run(ctx context.Context, opts ImportOptions) (*ImportStats, error) {
	entities, read, skipped, err := im.load(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, eris.Errorf("importer: no usable rows in %s", opts.Source)
	}

	var imported int64
	if opts.Replace {
		imported, err = im.store.ReplaceEntities(ctx, entities)
		if err != nil {
			return nil, err
		}
	} else {
		for start := 0; start < len(entities); start += importBatchSize {
			end := start + importBatchSize
			if end > len(entities) {
				end = len(entities)
			}
			n, err := im.store.UpsertEntities(ctx, entities[start:end])
			if err != nil {
				return nil, err
			}
			imported += n
		}
	}

	version, err := im.store.BumpVersion(ctx)
	if err != nil {
		return nil, err
	}

	return &ImportStats{
		Source:   opts.Source,
		Read:     read,
		Imported: imported,
		Skipped:  skipped,
		Version:  version,
	}, nil
}

func (im *Importer) load(ctx context.Context, opts ImportOptions) ([]*model.ReferenceEntity, int, int, error) {
	format := opts.Format
	if format == "" {
		format = detectFormat(opts.Source)
	}

	switch format {
	case "csv":
		return im.loadCSV(ctx, opts)
	case "xlsx":
		return im.loadXLSX(ctx, opts)
	case "json":
		return im.loadJSON(ctx, opts)
	case "xml":
		return im.loadXML(ctx, opts)
	case "zip":
		return im.loadZip(ctx, opts)
	default:
		return nil, 0, 0, eris.Errorf("importer: unsupported format %q for %s", format, opts.Source)
	}
}

// loadZip materializes the archive, extracts its single data member, and
// re-dispatches on the member's own format.
func (im *Importer) loadZip(ctx context.Context, opts ImportOptions) ([]*model.ReferenceEntity, int, int, error) {
	archive, cleanup, err := im.localPath(ctx, opts.Source, ".zip")
	if err != nil {
		return nil, 0, 0, err
	}
	defer cleanup()

	dir, err := os.MkdirTemp("", "screener-unzip-")
	if err != nil {
		return nil, 0, 0, eris.Wrap(err, "importer: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	member, err := fetcher.ExtractArchive(archive, dir)
	if err != nil {
		return nil, 0, 0, err
	}

	inner := opts
	inner.Source = member
	inner.Format = detectFormat(member)
	if inner.Format == "" || inner.Format == "zip" {
		return nil, 0, 0, eris.Errorf("importer: cannot detect format of archive member %s", filepath.Base(member))
	}
	return im.load(ctx, inner)
}

func (im *Importer) loadCSV(ctx context.Context, opts ImportOptions) ([]*model.ReferenceEntity, int, int, error) {
	r, closeFn, err := im.open(ctx, opts.Source)
	if err != nil {
		return nil, 0, 0, err
	}
	defer closeFn()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter: opts.Delimiter,
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	select {
	case header = <-headerCh:
	case _, ok := <-rowCh:
		if !ok {
			return nil, 0, 0, eris.Errorf("importer: %s is empty", opts.Source)
		}
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, 0, 0, err
	}

	var entities []*model.ReferenceEntity
	read, skipped := 0, 0
	for row := range rowCh {
		read++
		e, ok := rowToEntity(row, cols)
		if !ok {
			skipped++
			continue
		}
		entities = append(entities, e)
	}
	if err := <-errCh; err != nil {
		return nil, read, skipped, err
	}
	return entities, read, skipped, nil
}

func (im *Importer) loadXLSX(ctx context.Context, opts ImportOptions) ([]*model.ReferenceEntity, int, int, error) {
	path, cleanup, err := im.localPath(ctx, opts.Source, ".xlsx")
	if err != nil {
		return nil, 0, 0, err
	}
	defer cleanup()

	skipRows := opts.SkipRows
	if skipRows <= 0 {
		skipRows = 1
	}

	sheet, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{
		SheetName: opts.SheetName,
		SkipRows:  skipRows,
	})
	if err != nil {
		return nil, 0, 0, err
	}
	if len(sheet.Header) == 0 {
		return nil, 0, 0, eris.Errorf("importer: %s has no header row", opts.Source)
	}

	cols, err := mapColumns(sheet.Header)
	if err != nil {
		return nil, 0, 0, err
	}

	var entities []*model.ReferenceEntity
	read, skipped := 0, 0
	for _, row := range sheet.Rows {
		read++
		e, ok := rowToEntity(row, cols)
		if !ok {
			skipped++
			continue
		}
		entities = append(entities, e)
	}
	return entities, read, skipped, nil
}

// jsonEntityRow is the record shape for JSON array sources.
type jsonEntityRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Country     string   `json:"country"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	SourceURL   string   `json:"source_url"`
	PublishedAt string   `json:"published_at"`
}

func (im *Importer) loadJSON(ctx context.Context, opts ImportOptions) ([]*model.ReferenceEntity, int, int, error) {
	r, closeFn, err := im.open(ctx, opts.Source)
	if err != nil {
		return nil, 0, 0, err
	}
	defer closeFn()

	rowCh, errCh := fetcher.StreamJSON[jsonEntityRow](ctx, r)

	var entities []*model.ReferenceEntity
	read, skipped := 0, 0
	for row := range rowCh {
		read++
		if strings.TrimSpace(row.Name) == "" {
			skipped++
			continue
		}
		entities = append(entities, structuredEntity(row.ID, row.Name, row.Aliases,
			row.Country, row.Category, row.Description, row.SourceURL, row.PublishedAt))
	}
	if err := <-errCh; err != nil {
		return nil, read, skipped, err
	}
	return entities, read, skipped, nil
}

// xmlEntityRow is the record shape for XML sources. Aliases repeat as
// <alias> child elements.
type xmlEntityRow struct {
	ID          string   `xml:"id,attr"`
	Name        string   `xml:"name"`
	Aliases     []string `xml:"alias"`
	Country     string   `xml:"country"`
	Category    string   `xml:"category"`
	Description string   `xml:"description"`
	SourceURL   string   `xml:"source_url"`
	PublishedAt string   `xml:"published_at"`
}

func (im *Importer) loadXML(ctx context.Context, opts ImportOptions) ([]*model.ReferenceEntity, int, int, error) {
	r, closeFn, err := im.open(ctx, opts.Source)
	if err != nil {
		return nil, 0, 0, err
	}
	defer closeFn()

	element := opts.ElementName
	if element == "" {
		element = "entity"
	}
	rowCh, errCh := fetcher.StreamXML[xmlEntityRow](ctx, r, element)

	var entities []*model.ReferenceEntity
	read, skipped := 0, 0
	for row := range rowCh {
		read++
		if strings.TrimSpace(row.Name) == "" {
			skipped++
			continue
		}
		entities = append(entities, structuredEntity(row.ID, row.Name, row.Aliases,
			row.Country, row.Category, row.Description, row.SourceURL, row.PublishedAt))
	}
	if err := <-errCh; err != nil {
		return nil, read, skipped, err
	}
	return entities, read, skipped, nil
}

// structuredEntity builds an entity from an already-parsed JSON or XML
// record.
func structuredEntity(id, name string, aliases []string, country, category, description, sourceURL, published string) *model.ReferenceEntity {
	e := &model.ReferenceEntity{
		ID:          strings.TrimSpace(id),
		Name:        strings.TrimSpace(name),
		Country:     strings.TrimSpace(country),
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		SourceURL:   strings.TrimSpace(sourceURL),
		PublishedAt: parsePublished(published),
		UpdatedAt:   time.Now().UTC(),
	}
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a != "" {
			e.Aliases = append(e.Aliases, a)
		}
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return e
}

// open returns a reader for a local path or a remote URL.
func (im *Importer) open(ctx context.Context, source string) (io.Reader, func(), error) {
	if dl := im.downloaderFor(source); dl != nil {
		body, err := dl.Download(ctx, source)
		if err != nil {
			return nil, nil, err
		}
		return body, func() { body.Close() }, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "importer: open %s", source)
	}
	return f, func() { f.Close() }, nil
}

// localPath materializes the source as a local file, downloading remote
// sources to a temp file first.
func (im *Importer) localPath(ctx context.Context, source, suffix string) (string, func(), error) {
	dl := im.downloaderFor(source)
	if dl == nil {
		return source, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "screener-import-*"+suffix)
	if err != nil {
		return "", nil, eris.Wrap(err, "importer: create temp file")
	}
	tmp.Close()

	if _, err := dl.DownloadToFile(ctx, source, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func (im *Importer) downloaderFor(source string) downloader {
	u, err := url.Parse(source)
	if err != nil {
		return nil
	}
	switch u.Scheme {
	case "http", "https":
		return im.http
	case "ftp":
		return im.ftp
	default:
		return nil
	}
}

func detectFormat(source string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(source, "/"))) {
	case ".xlsx":
		return "xlsx"
	case ".csv", ".txt":
		return "csv"
	case ".json":
		return "json"
	case ".xml":
		return "xml"
	case ".zip":
		return "zip"
	default:
		return ""
	}
}

// columnMap maps entity fields to column positions in the source file.
type columnMap struct {
	id, name, aliases, country, category, description, sourceURL, publishedAt int
}

// headerNames maps accepted header spellings to canonical fields. The
// variants cover the columns the published lists actually use.
var headerNames = map[string]string{
	"id": "id", "entity_id": "id", "uid": "id", "external_id": "id", "entity_number": "id",
	"name": "name", "entity_name": "name", "organization": "name", "organization_name": "name", "company": "name", "company_name": "name",
	"aliases": "aliases", "alias": "aliases", "aka": "aliases", "also_known_as": "aliases", "alt_names": "aliases",
	"country": "country", "nation": "country",
	"category": "category", "type": "category", "list": "category", "schema_type": "category",
	"description": "description", "notes": "description", "reason": "description",
	"source_url": "source_url", "url": "source_url", "source": "source_url", "source_list_url": "source_url", "data_source_url": "source_url",
	"published_at": "published_at", "published": "published_at", "published_date": "published_at", "date": "published_at", "listed_at": "published_at",
}

func mapColumns(header []string) (*columnMap, error) {
	cols := &columnMap{id: -1, name: -1, aliases: -1, country: -1, category: -1, description: -1, sourceURL: -1, publishedAt: -1}
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(raw))
		key = strings.ReplaceAll(key, " ", "_")
		switch headerNames[key] {
		case "id":
			cols.id = i
		case "name":
			cols.name = i
		case "aliases":
			cols.aliases = i
		case "country":
			cols.country = i
		case "category":
			cols.category = i
		case "description":
			cols.description = i
		case "source_url":
			cols.sourceURL = i
		case "published_at":
			cols.publishedAt = i
		}
	}
	if cols.name == -1 {
		return nil, eris.Errorf("importer: header has no name column: %v", header)
	}
	return cols, nil
}

var publishedLayouts = []string{time.RFC3339, "2006-01-02", "01/02/2006"}

func parsePublished(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// rowToEntity converts one source row. Rows without a name are skipped.
func rowToEntity(row []string, cols *columnMap) (*model.ReferenceEntity, bool) {
	name := cell(row, cols.name)
	if name == "" {
		return nil, false
	}

	e := &model.ReferenceEntity{
		ID:          cell(row, cols.id),
		Name:        name,
		Aliases:     model.SplitAliases(cell(row, cols.aliases)),
		Country:     cell(row, cols.country),
		Category:    cell(row, cols.category),
		Description: cell(row, cols.description),
		SourceURL:   cell(row, cols.sourceURL),
		PublishedAt: parsePublished(cell(row, cols.publishedAt)),
		UpdatedAt:   time.Now().UTC(),
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return e, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
