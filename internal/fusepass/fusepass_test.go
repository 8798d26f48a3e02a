//go:build linux
// +build linux

package fusepass_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/fusepass"
)

func newTestFS(t *testing.T) *fusepass.PassthroughFS {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello world"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	return &fusepass.PassthroughFS{RawPath: root, UID: 1023, GID: 1023}
}

type lookuper interface {
	Lookup(ctx context.Context, name string) (fs.Node, error)
}

func lookup(t *testing.T, node fs.Node, name string) (fs.Node, error) {
	t.Helper()
	l, ok := node.(lookuper)
	require.True(t, ok)
	return l.Lookup(context.Background(), name)
}

func TestRoot_AttrRemapsOwnership(t *testing.T) {
	pfs := newTestFS(t)
	root, err := pfs.Root()
	require.NoError(t, err)

	var a fuse.Attr
	require.NoError(t, root.Attr(context.Background(), &a))

	require.Equal(t, uint32(1023), a.Uid)
	require.Equal(t, uint32(1023), a.Gid)
	require.True(t, a.Mode.IsDir())
}

func TestRoot_LookupFindsFileAndDir(t *testing.T) {
	pfs := newTestFS(t)
	root, err := pfs.Root()
	require.NoError(t, err)

	fileNode, err := lookup(t, root, "hello.txt")
	require.NoError(t, err)
	require.NotNil(t, fileNode)

	dirNode, err := lookup(t, root, "sub")
	require.NoError(t, err)
	require.NotNil(t, dirNode)

	_, err = lookup(t, root, "missing")
	require.Equal(t, fuse.ENOENT, err)
}

func TestRoot_ReadDirAll(t *testing.T) {
	pfs := newTestFS(t)
	root, err := pfs.Root()
	require.NoError(t, err)

	entries, err := root.(interface {
		ReadDirAll(ctx context.Context) ([]fuse.Dirent, error)
	}).ReadDirAll(context.Background())
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["hello.txt"])
	require.True(t, names["sub"])
}

func TestFile_ReadAll(t *testing.T) {
	pfs := newTestFS(t)
	root, err := pfs.Root()
	require.NoError(t, err)

	fileNode, err := lookup(t, root, "hello.txt")
	require.NoError(t, err)

	data, err := fileNode.(interface {
		ReadAll(ctx context.Context) ([]byte, error)
	}).ReadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestFile_Write(t *testing.T) {
	pfs := newTestFS(t)
	root, err := pfs.Root()
	require.NoError(t, err)

	fileNode, err := lookup(t, root, "hello.txt")
	require.NoError(t, err)

	req := &fuse.WriteRequest{Data: []byte("HELLO"), Offset: 0}
	resp := &fuse.WriteResponse{}
	require.NoError(t, fileNode.(interface {
		Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error
	}).Write(context.Background(), req, resp))
	require.Equal(t, 5, resp.Size)

	data, err := os.ReadFile(filepath.Join(pfs.RawPath, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "HELLO world", string(data))
}
