package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}
func (m *memStore) PublicURL(key string) string { return "mem://" + key }

func archiveNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, h.Name)
	}
	sort.Strings(names)
	return names
}

func TestRunArchivesTablesAndUploads(t *testing.T) {
	data := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(data, "alerts.csv"), []byte("alert_id\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "notifications.json"), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, ".alerts.csv.123.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "README"), []byte("x"), 0o644))

	up := &memStore{objects: map[string][]byte{}}
	b := New(data, t.TempDir())
	b.Uploader = up

	path, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alerts.csv", "notifications.json"}, archiveNames(t, path))
	assert.Contains(t, up.objects, filepath.Base(path))
}

func TestPruneKeepsNewest(t *testing.T) {
	data := t.TempDir()
	out := t.TempDir()
	b := New(data, out)
	b.Keep = 2

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		b.now = func() time.Time { return at }
		_, err := b.Run(context.Background())
		require.NoError(t, err)
	}

	matches, _ := filepath.Glob(filepath.Join(out, archivePrefix+"*"))
	sort.Strings(matches)
	require.Len(t, matches, 2)
	assert.Contains(t, matches[1], "20250101_030000")
}
