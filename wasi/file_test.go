package wasi

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFile_ReadWriteSeek(t *testing.T) {
	f := NewMemFile([]byte("hello"))

	buf := make([]byte, 3)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hel", string(buf[:n]))

	_, err = f.Write([]byte("XY"))
	require.NoError(t, err)

	st, err := f.Stat()
	require.NoError(t, err)
	require.Equal(t, FiletypeRegularFile, st.Filetype)
	require.EqualValues(t, 5, st.Size)

	pos, err := f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 0, pos)

	full := make([]byte, 5)
	n, err = f.Read(full)
	require.NoError(t, err)
	require.Equal(t, "helXY", string(full[:n]))
}

func TestMemFile_ReadEOF(t *testing.T) {
	f := NewMemFile([]byte("ab"))
	buf := make([]byte, 2)
	_, err := f.Read(buf)
	require.NoError(t, err)
	_, err = f.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestMemFile_PwriteGrows(t *testing.T) {
	f := NewMemFile(nil)
	n, err := f.Pwrite([]byte("Z"), 4)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	st, _ := f.Stat()
	require.EqualValues(t, 5, st.Size)
}

func TestMemFile_Truncate(t *testing.T) {
	f := NewMemFile([]byte("hello world"))
	require.NoError(t, f.Truncate(5))
	st, _ := f.Stat()
	require.EqualValues(t, 5, st.Size)

	require.NoError(t, f.Truncate(8))
	st, _ = f.Stat()
	require.EqualValues(t, 8, st.Size)
}

func TestOSFile_ReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	osf, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	f := NewOSFile(osf)
	defer f.Close()

	buf := make([]byte, 5)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	st, err := f.Stat()
	require.NoError(t, err)
	require.EqualValues(t, 5, st.Size)
}

func TestOSFile_AppendNonblockFlagsAreLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	osf, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	f := NewOSFile(osf)
	defer f.Close()

	require.False(t, f.IsAppend())
	require.NoError(t, f.SetAppend(true))
	require.True(t, f.IsAppend())
}

func TestOSDir_CreateOpenReaddirUnlink(t *testing.T) {
	root := t.TempDir()
	d := NewOSDir(root)

	require.NoError(t, d.CreateDirectory("sub"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	entries, err := d.Readdir(0)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["sub"])
	require.True(t, names["a.txt"])

	wf, err := d.OpenFile("a.txt", os.O_RDONLY, FileCapRead)
	require.NoError(t, err)
	defer wf.Close()
	buf := make([]byte, 1)
	_, err = wf.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "x", string(buf))

	require.NoError(t, d.UnlinkFile("a.txt"))
	_, err = os.Stat(filepath.Join(root, "a.txt"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, d.RemoveDirectory("sub"))
}

func TestOSDir_RenameAcrossSameRoot(t *testing.T) {
	root := t.TempDir()
	d := NewOSDir(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.txt"), []byte("y"), 0o644))
	require.NoError(t, d.Rename("old.txt", d, "new.txt"))
	_, err := os.Stat(filepath.Join(root, "new.txt"))
	require.NoError(t, err)
}

func TestOSDir_RejectsPathEscapingRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "guest")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("s"), 0o644))

	d := NewOSDir(sub)
	_, err := d.PathFilestatGet("../secret.txt", true)
	require.Error(t, err)

	_, err = d.OpenFile("../secret.txt", os.O_RDONLY, FileCapRead)
	require.Error(t, err)
}

func TestOSDir_AllowsPathsWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "f.txt"), []byte("v"), 0o644))

	d := NewOSDir(root)
	_, err := d.PathFilestatGet("nested/f.txt", true)
	require.NoError(t, err)
}

func TestOSDir_PathFilestatGetMissing(t *testing.T) {
	root := t.TempDir()
	d := NewOSDir(root)
	_, err := d.PathFilestatGet("missing.txt", true)
	require.Error(t, err)
}
