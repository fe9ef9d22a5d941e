package engine

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultPageSize is the build-time page-size constant that governs the
// meta file size and the data file's growth quantum.
const DefaultPageSize = 4096

// mappedFile wraps an *os.File with a shared read-write mmap over its
// full extent, grounded on the mmapFile pattern used for extent stores
// in the corpus: open-or-create, size to a target length, mmap.
type mappedFile struct {
	file *os.File
	data []byte
	size int
}

func openMappedFile(path string, minSize int) (*mappedFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("engine: stat %s: %w", path, err)
	}

	size := int(info.Size())
	if size < minSize {
		if err := f.Truncate(int64(minSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("engine: truncate %s: %w", path, err)
		}
		size = minSize
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("engine: mmap %s: %w", path, err)
	}

	return &mappedFile{file: f, data: data, size: size}, nil
}

// remap resizes the backing file and re-establishes the mapping at the
// new size. The old mapping is unmapped first; every slice previously
// obtained from data is invalidated by this call.
func (m *mappedFile) remap(newSize int) error {
	if newSize == m.size {
		return nil
	}
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("engine: munmap: %w", err)
	}
	m.data = nil

	if err := m.file.Truncate(int64(newSize)); err != nil {
		// best-effort remap back to the old size so the mapping stays valid
		if remapErr := m.remapSameSize(); remapErr == nil {
			return fmt.Errorf("engine: truncate to %d: %w", newSize, err)
		}
		return fmt.Errorf("engine: truncate to %d: %w (and rollback remap failed)", newSize, err)
	}

	data, err := unix.Mmap(int(m.file.Fd()), 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("engine: mmap at size %d: %w", newSize, err)
	}
	m.data = data
	m.size = newSize
	return nil
}

func (m *mappedFile) remapSameSize() error {
	data, err := unix.Mmap(int(m.file.Fd()), 0, m.size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

func (m *mappedFile) sync(durable bool) error {
	if m.data == nil {
		return nil
	}
	flag := unix.MS_ASYNC
	if durable {
		flag = unix.MS_SYNC
	}
	if err := unix.Msync(m.data, flag); err != nil {
		return fmt.Errorf("engine: msync: %w", err)
	}
	return nil
}

func (m *mappedFile) close() error {
	var errs []error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			errs = append(errs, err)
		}
		m.data = nil
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("engine: close: %v", errs)
	}
	return nil
}

func (m *mappedFile) isValid() bool {
	return m.file != nil && m.size > 0 && m.data != nil
}

// FilePair bundles the data and meta memory-mapped regions that make up
// one store instance.
type FilePair struct {
	Data *mappedFile
	Meta *mappedFile

	path     string
	metaPath string
}

// OpenFilePair opens or creates the data file (rounded up to a page
// multiple, zero-filling any new tail) and the fixed one-page meta
// file, mapping both read-write and shared.
func OpenFilePair(dataPath, metaPath string) (*FilePair, error) {
	data, err := openMappedFile(dataPath, DefaultPageSize)
	if err != nil {
		return nil, err
	}
	if rem := len(data.data) % DefaultPageSize; rem != 0 || len(data.data) == 0 {
		aligned := pageAlign(len(data.data))
		if err := data.remap(aligned); err != nil {
			data.close()
			return nil, err
		}
	}

	meta, err := openMappedFile(metaPath, DefaultPageSize)
	if err != nil {
		data.close()
		return nil, err
	}

	return &FilePair{Data: data, Meta: meta, path: dataPath, metaPath: metaPath}, nil
}

func pageAlign(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	rem := size % DefaultPageSize
	if rem == 0 {
		return size
	}
	return size + (DefaultPageSize - rem)
}

// IsValid mirrors the file-pair validity contract: both descriptors
// open, both mappings non-empty and present.
func (fp *FilePair) IsValid() bool {
	return fp != nil && fp.Data.isValid() && fp.Meta.isValid()
}

// GrowData doubles the data file's size until it can hold required
// bytes plus a projected future-usage cushion, futureUsage =
// avgItemSize * max(8, (count+1)/2). avgItemSize is the caller's
// estimate (the engine passes the mean encoded size of the live
// records, which leaves dead records out); required / max(1, count) is
// used only when avgItemSize is not positive.
func (fp *FilePair) GrowData(required, avgItemSize, count int) error {
	if avgItemSize <= 0 {
		if count > 0 {
			avgItemSize = required / count
		} else {
			avgItemSize = required
		}
	}
	cushionCount := (count + 1) / 2
	if cushionCount < 8 {
		cushionCount = 8
	}
	futureUsage := avgItemSize * cushionCount

	newSize := fp.Data.size
	if newSize <= 0 {
		newSize = DefaultPageSize
	}
	for required+futureUsage >= newSize {
		newSize *= 2
	}
	return fp.Data.remap(newSize)
}

// TrimData halves the data file's size while it remains more than
// twice the actual content length, per the trim contract. Callers must
// perform a full writeback before calling TrimData.
func (fp *FilePair) TrimData(actualSizePlusHeader int) error {
	newSize := fp.Data.size
	for newSize > 2*actualSizePlusHeader && newSize/2 >= DefaultPageSize {
		newSize /= 2
	}
	if newSize == fp.Data.size {
		return nil
	}
	return fp.Data.remap(newSize)
}

// Close releases both mappings and file descriptors.
func (fp *FilePair) Close() error {
	dataErr := fp.Data.close()
	metaErr := fp.Meta.close()
	if dataErr != nil {
		return dataErr
	}
	return metaErr
}

// Sync msyncs both mappings.
func (fp *FilePair) Sync(durable bool) error {
	if err := fp.Data.sync(durable); err != nil {
		return err
	}
	return fp.Meta.sync(durable)
}
