package store

import (
	"context"
	"testing"

	"github.com/searchprobe/searchprobe/internal/config"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		want    target
		wantErr string
	}{
		{
			name: "url gets auth token",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io", AuthToken: "token123"},
			want: target{dsn: "libsql://example.turso.io?authToken=token123"},
		},
		{
			name: "url keeps existing query",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io?foo=bar", AuthToken: "token123"},
			want: target{dsn: "libsql://example.turso.io?authToken=token123&foo=bar"},
		},
		{
			name: "url keeps its own token",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io?authToken=mine", AuthToken: "other"},
			want: target{dsn: "libsql://example.turso.io?authToken=mine"},
		},
		{
			name: "url wins over path",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io", Path: "ignored.db"},
			want: target{dsn: "libsql://example.turso.io"},
		},
		{
			name: "file prefix is local",
			cfg:  config.StoreConfig{Path: "file:" + dir + "/a/searchprobe.db"},
			want: target{dsn: "file:" + dir + "/a/searchprobe.db", local: true},
		},
		{
			name: "bare path becomes file dsn",
			cfg:  config.StoreConfig{Path: dir + "/b/../searchprobe.db"},
			want: target{dsn: "file:" + dir + "/searchprobe.db", local: true},
		},
		{
			name: "memory is not local",
			cfg:  config.StoreConfig{Path: ":memory:"},
			want: target{dsn: ":memory:"},
		},
		{
			name:    "nothing configured",
			cfg:     config.StoreConfig{},
			wantErr: "store path or url is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTarget(tt.cfg)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.EqualError(t, err, "unsupported store driver: postgres")
}

func TestNilStoreIsNotInitialized(t *testing.T) {
	var s *Store
	_, err := s.ListSearches(context.Background(), HistoryQuery{})
	require.ErrorIs(t, err, errNotInitialized)
	require.ErrorIs(t, s.Ping(context.Background()), errNotInitialized)
	require.NoError(t, s.Close())
	require.Equal(t, "", s.Driver())
}
