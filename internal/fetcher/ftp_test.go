package fetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFTPAddr(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantAddr string
		wantPath string
		wantErr  string
	}{
		{
			name:     "default port",
			url:      "ftp://ftp.example.com/pub/data/list.csv",
			wantAddr: "ftp.example.com:21",
			wantPath: "/pub/data/list.csv",
		},
		{
			name:     "explicit port",
			url:      "ftp://ftp.example.com:2121/data/list.txt",
			wantAddr: "ftp.example.com:2121",
			wantPath: "/data/list.txt",
		},
		{
			name:     "nested path",
			url:      "ftp://ftp.treasury.gov/sanctions/lists/2026/Q1/sdn.csv",
			wantAddr: "ftp.treasury.gov:21",
			wantPath: "/sanctions/lists/2026/Q1/sdn.csv",
		},
		{
			name:    "http scheme rejected",
			url:     "http://example.com/list.csv",
			wantErr: "expected ftp scheme",
		},
		{
			name:    "no file path",
			url:     "ftp://ftp.example.com",
			wantErr: "no file path",
		},
		{
			name:    "unparseable url",
			url:     "://bad",
			wantErr: "parse url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, path, err := ftpAddr(tt.url)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestNewFTPFetcher_Defaults(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, 30*time.Second, f.opts.Timeout)
	assert.Equal(t, "anonymous", f.opts.User)
	assert.Equal(t, "anonymous@", f.opts.Password)
}

func TestNewFTPFetcher_CredentialsKept(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{User: "mirror", Password: "s3cret"})
	assert.Equal(t, "mirror", f.opts.User)
	assert.Equal(t, "s3cret", f.opts.Password)
}
