package chunkvfs

import (
	"io"

	"github.com/psanford/sqlite3vfs"
)

// rangeVFS adapts a RangeReader to the SQLite VFS interface. The remote
// database is read-only and immutable, so every write-side entry point
// reports a read-only error and no journal or WAL files ever exist.
type rangeVFS struct {
	reader *RangeReader
}

func (v *rangeVFS) Open(name string, flags sqlite3vfs.OpenFlag) (sqlite3vfs.File, sqlite3vfs.OpenFlag, error) {
	if flags&sqlite3vfs.OpenMainDB == 0 {
		// Journals, WAL, temp files: nothing to open on an immutable file.
		return nil, flags, sqlite3vfs.CantOpenError
	}
	return &rangeFile{reader: v.reader}, flags, nil
}

func (v *rangeVFS) Delete(name string, dirSync bool) error {
	return sqlite3vfs.ReadOnlyError
}

func (v *rangeVFS) Access(name string, flag sqlite3vfs.AccessFlag) (bool, error) {
	// No sidecar files exist; the main database is opened directly.
	return false, nil
}

func (v *rangeVFS) FullPathname(name string) string {
	return name
}

// rangeFile is the engine-facing file handle over the range reader.
type rangeFile struct {
	reader *RangeReader
}

func (f *rangeFile) Close() error { return nil }

func (f *rangeFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.reader.ReadAt(p, off)
	if err == io.EOF {
		if n == len(p) {
			return n, nil
		}
		// SQLite expects short reads past EOF to be zero-filled.
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
		return n, sqlite3vfs.IOErrorShortRead
	}
	return n, err
}

func (f *rangeFile) WriteAt(b []byte, off int64) (int, error) {
	return 0, sqlite3vfs.ReadOnlyError
}

func (f *rangeFile) Truncate(size int64) error {
	return sqlite3vfs.ReadOnlyError
}

func (f *rangeFile) Sync(flag sqlite3vfs.SyncType) error { return nil }

func (f *rangeFile) FileSize() (int64, error) {
	return f.reader.Size(), nil
}

func (f *rangeFile) Lock(elock sqlite3vfs.LockType) error   { return nil }
func (f *rangeFile) Unlock(elock sqlite3vfs.LockType) error { return nil }

func (f *rangeFile) CheckReservedLock() (bool, error) { return false, nil }

func (f *rangeFile) SectorSize() int64 { return 0 }

func (f *rangeFile) DeviceCharacteristics() sqlite3vfs.DeviceCharacteristic {
	return sqlite3vfs.IocapImmutable
}

var (
	_ sqlite3vfs.VFS  = (*rangeVFS)(nil)
	_ sqlite3vfs.File = (*rangeFile)(nil)
)
