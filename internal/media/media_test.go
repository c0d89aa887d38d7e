package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	cases := map[string]string{
		"items/abc.jpg":                         "items/abc.jpg",
		"https://cdn.example.com/items/abc.jpg": "items/abc.jpg",
		"/profiles/me.png":                      "profiles/me.png",
		"avatar.png":                            "avatar.png",
	}
	for in, want := range cases {
		got, err := Key(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Key("")
	assert.Error(t, err)
	_, err = Key("/")
	assert.Error(t, err)
	_, err = Key("items/../../etc/passwd")
	assert.Error(t, err)
}

func TestKey_RejectsDeepHandles(t *testing.T) {
	for _, h := range []string{
		"a/b/c/d.jpg",
		"https://cdn.example.com/bucket/items/abc.jpg",
	} {
		_, err := Key(h)
		assert.Error(t, err, h)
	}
}

func TestDiskStore_Delete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "items"), 0o755))
	file := filepath.Join(root, "items", "drill.jpg")
	require.NoError(t, os.WriteFile(file, []byte("jpg"), 0o644))

	s := NewDiskStore(root)
	require.NoError(t, s.Delete(context.Background(), "https://cdn.example.com/items/drill.jpg"))

	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	other := filepath.Join(root, "c", "d.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(other), 0o755))
	require.NoError(t, os.WriteFile(other, []byte("jpg"), 0o644))
	assert.Error(t, s.Delete(context.Background(), "a/b/c/d.jpg"))
	_, err = os.Stat(other)
	assert.NoError(t, err, "a deeper handle must not remove a shallower file")

	// Already gone.
	assert.NoError(t, s.Delete(context.Background(), "items/drill.jpg"))
}
