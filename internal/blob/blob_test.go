package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arksync/internal/config"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     newMockS3(t),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info, err := store.Put(ctx, "backups/a.json", bytes.NewReader([]byte(`{"a":1}`)), PutOptions{ContentType: "application/json"})
			require.NoError(t, err)
			assert.Equal(t, "backups/a.json", info.Key)
			assert.Equal(t, int64(7), info.Size)
			assert.Equal(t, "application/json", info.ContentType)

			_, err = store.Put(ctx, "backups/a.json", bytes.NewReader([]byte("x")), PutOptions{})
			require.ErrorIs(t, err, ErrExists)

			head, err := store.Head(ctx, "backups/a.json")
			require.NoError(t, err)
			assert.Equal(t, int64(7), head.Size)

			_, rc, err := store.Get(ctx, "backups/a.json")
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, `{"a":1}`, string(data))

			_, err = store.Put(ctx, "backups/b.json", bytes.NewReader([]byte("{}")), PutOptions{})
			require.NoError(t, err)
			_, err = store.Put(ctx, "other/c.json", bytes.NewReader([]byte("{}")), PutOptions{})
			require.NoError(t, err)

			list, err := store.List(ctx, "backups/")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "backups/a.json", list[0].Key)
			assert.Equal(t, "backups/b.json", list[1].Key)

			ok, err := store.Delete(ctx, "backups/a.json")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = store.Delete(ctx, "backups/a.json")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = store.Head(ctx, "backups/a.json")
			require.ErrorIs(t, err, ErrNotFound)
			_, _, err = store.Get(ctx, "backups/a.json")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestInvalidKeys(t *testing.T) {
	fsStore, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	for _, store := range []Store{NewMemory(), fsStore} {
		for _, key := range []string{"", "  ", "/etc/passwd", "../escape", "a/../../b"} {
			_, err := store.Put(context.Background(), key, bytes.NewReader(nil), PutOptions{})
			assert.ErrorIs(t, err, ErrInvalidKey, "%s %q", store.Driver(), key)
		}
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	md := map[string]string{"k": "v"}
	_, err := m.Put(ctx, "x", bytes.NewReader([]byte("1")), PutOptions{Metadata: md})
	require.NoError(t, err)
	md["k"] = "changed"

	info, err := m.Head(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "v", info.Metadata["k"])
	info.Metadata["k"] = "mutated"

	again, err := m.Head(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestFilesystemLayout(t *testing.T) {
	root := t.TempDir()
	f, err := NewFilesystem(root)
	require.NoError(t, err)
	_, err = f.Put(context.Background(), "nested/dir/x.json", bytes.NewReader([]byte("data")), PutOptions{Metadata: map[string]string{"source": "test"}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "nested", "dir", "x.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "nested", "dir", "x.json"+metaSuffix))
	require.NoError(t, err)

	info, err := f.Head(context.Background(), "nested/dir/x.json")
	require.NoError(t, err)
	assert.Len(t, info.ETag, 64)
	assert.Equal(t, "test", info.Metadata["source"])
}

func TestFilesystemCorruptMeta(t *testing.T) {
	root := t.TempDir()
	f, err := NewFilesystem(root)
	require.NoError(t, err)
	_, err = f.Put(context.Background(), "x", bytes.NewReader([]byte("data")), PutOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "x"+metaSuffix), []byte("{"), 0o644))

	_, err = f.Head(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	_, err = f.List(context.Background(), "")
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	root := filepath.Join(t.TempDir(), "b")
	s, err = Open(ctx, config.BlobConfig{FSRoot: root})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())
	assert.DirExists(t, root)

	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	s, err = Open(ctx, config.BlobConfig{Driver: "S3", S3Bucket: "bkt", S3Endpoint: "https://mock.s3.local", S3PathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, DriverS3, s.Driver())

	_, err = Open(ctx, config.BlobConfig{Driver: "s3"})
	require.Error(t, err)
	_, err = Open(ctx, config.BlobConfig{Driver: "ftp"})
	require.Error(t, err)
}
