package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractArchive extracts the single data member of a ZIP archive into
// destDir and returns its path. Watchlist publishers wrap one export per
// archive, so zero or multiple data members are rejected. Directory
// entries and macOS resource junk are ignored, and member paths are
// confined to destDir.
func ExtractArchive(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var member *zip.File
	for _, f := range r.File {
		if !isDataMember(f) {
			continue
		}
		if member != nil {
			return "", eris.Errorf("zip: archive holds more than one data file (%s, %s)", member.Name, f.Name)
		}
		member = f
	}
	if member == nil {
		return "", eris.New("zip: archive holds no data file")
	}

	dest := filepath.Join(destDir, filepath.Base(member.Name))
	if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: member escapes destination: %q", member.Name)
	}

	src, err := member.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open member %s", member.Name)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "zip: create output file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, src); err != nil {
		return "", eris.Wrapf(err, "zip: extract %s", member.Name)
	}
	return dest, nil
}

// isDataMember filters out directories, macOS metadata, and hidden files.
func isDataMember(f *zip.File) bool {
	if f.FileInfo().IsDir() {
		return false
	}
	if strings.HasPrefix(f.Name, "__MACOSX/") {
		return false
	}
	return !strings.HasPrefix(filepath.Base(f.Name), ".")
}
