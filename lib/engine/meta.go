package engine

import (
	"encoding/binary"
	"fmt"
)

// Meta file header wire format, byte-exact within the first page:
//
//	off  size  field
//	0    4     crcDigest
//	4    4     actualSize
//	8    4     version
//	12   4     sequence
//	16   16    iv
//	32   4     lastConfirmed.actualSize
//	36   4     lastConfirmed.crcDigest
//	40   ..    reserved / zero
const (
	metaOffCRC              = 0
	metaOffActualSize       = 4
	metaOffVersion          = 8
	metaOffSequence         = 12
	metaOffIV               = 16
	metaOffLastConfirmedLen = 32
	metaOffLastConfirmedCRC = 36
	metaHeaderSize          = 40
)

// Version is the monotonically increasing meta format version. Writing
// any field that requires a newer format bumps Version to the minimum
// required: Sequence -> ActualSize -> RandomIV.
type Version uint32

const (
	VersionLegacy     Version = 0
	VersionSequence   Version = 1
	VersionActualSize Version = 2
	VersionRandomIV   Version = 3
)

// LastConfirmed is the (actualSize, crcDigest) pair captured just before
// the most recent sequence-bumping commit, used as a rollback point.
type LastConfirmed struct {
	ActualSize uint32
	CRCDigest  uint32
}

// Meta is the in-memory mirror of the meta file header.
type Meta struct {
	CRCDigest     uint32
	ActualSize    uint32
	Version       Version
	Sequence      uint32
	IV            [16]byte
	LastConfirmed LastConfirmed
}

// Read copies the header out of the mapped meta page into m.
func (m *Meta) Read(page []byte) error {
	if len(page) < metaHeaderSize {
		return fmt.Errorf("engine: meta page too small: %d bytes", len(page))
	}
	m.CRCDigest = binary.LittleEndian.Uint32(page[metaOffCRC:])
	m.ActualSize = binary.LittleEndian.Uint32(page[metaOffActualSize:])
	m.Version = Version(binary.LittleEndian.Uint32(page[metaOffVersion:]))
	m.Sequence = binary.LittleEndian.Uint32(page[metaOffSequence:])
	copy(m.IV[:], page[metaOffIV:metaOffIV+16])
	m.LastConfirmed.ActualSize = binary.LittleEndian.Uint32(page[metaOffLastConfirmedLen:])
	m.LastConfirmed.CRCDigest = binary.LittleEndian.Uint32(page[metaOffLastConfirmedCRC:])
	return nil
}

// Write stores the entire header back into the mapped meta page in one pass.
func (m *Meta) Write(page []byte) error {
	if len(page) < metaHeaderSize {
		return fmt.Errorf("engine: meta page too small: %d bytes", len(page))
	}
	binary.LittleEndian.PutUint32(page[metaOffCRC:], m.CRCDigest)
	binary.LittleEndian.PutUint32(page[metaOffActualSize:], m.ActualSize)
	binary.LittleEndian.PutUint32(page[metaOffVersion:], uint32(m.Version))
	binary.LittleEndian.PutUint32(page[metaOffSequence:], m.Sequence)
	copy(page[metaOffIV:metaOffIV+16], m.IV[:])
	binary.LittleEndian.PutUint32(page[metaOffLastConfirmedLen:], m.LastConfirmed.ActualSize)
	binary.LittleEndian.PutUint32(page[metaOffLastConfirmedCRC:], m.LastConfirmed.CRCDigest)
	return nil
}

// WriteCRCAndActualSizeOnly is the hot-path variant used on every append:
// it touches only the two fields that change on a plain set/remove,
// leaving version, sequence and IV untouched.
func (m *Meta) WriteCRCAndActualSizeOnly(page []byte) error {
	if len(page) < metaHeaderSize {
		return fmt.Errorf("engine: meta page too small: %d bytes", len(page))
	}
	binary.LittleEndian.PutUint32(page[metaOffCRC:], m.CRCDigest)
	binary.LittleEndian.PutUint32(page[metaOffActualSize:], m.ActualSize)
	return nil
}

// bumpVersion raises Version to at least required.
func (m *Meta) bumpVersion(required Version) {
	if m.Version < required {
		m.Version = required
	}
}

// setSequence records a sequence-bumping commit, ensuring the version
// field reflects that sequence tracking is in use.
func (m *Meta) setSequence(seq uint32) {
	m.bumpVersion(VersionSequence)
	m.Sequence = seq
}

// setIV records a fresh encryption IV, bumping the version to RandomIV.
func (m *Meta) setIV(iv []byte) {
	m.bumpVersion(VersionRandomIV)
	copy(m.IV[:], iv)
}

// setActualSize records a new authoritative record-stream length,
// bumping the version to at least ActualSize.
func (m *Meta) setActualSize(size uint32) {
	m.bumpVersion(VersionActualSize)
	m.ActualSize = size
}
