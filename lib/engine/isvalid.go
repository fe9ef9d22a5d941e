package engine

import (
	"encoding/binary"
	"hash/crc32"
	"os"
)

// IsFileValid probes a data/meta file pair for basic consistency
// without constructing a live engine: the meta file must be readable,
// the actual size must fit within the data file, and the CRC over the
// record region must match meta.crcDigest. Mirrors MMKV::isFileValid.
func IsFileValid(dataPath, metaPath string) bool {
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil || len(metaBytes) < metaHeaderSize {
		return false
	}
	var m Meta
	if err := m.Read(metaBytes); err != nil {
		return false
	}

	info, err := os.Stat(dataPath)
	if err != nil {
		return false
	}

	as := int(m.ActualSize)
	if m.Version < VersionActualSize {
		f, err := os.Open(dataPath)
		if err != nil {
			return false
		}
		defer f.Close()
		header := make([]byte, 4)
		if _, err := f.ReadAt(header, 0); err != nil {
			return false
		}
		as = int(binary.LittleEndian.Uint32(header))
	}

	if int64(as+4) > info.Size() {
		return false
	}

	data, err := os.ReadFile(dataPath)
	if err != nil || 4+as > len(data) {
		return false
	}
	return crc32.ChecksumIEEE(data[4:4+as]) == m.CRCDigest
}
