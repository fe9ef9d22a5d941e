package engine

import (
	"encoding/binary"
	"fmt"
)

// A record is varint(keyLen) | keyBytes | varint(valueLen) | valueBytes.
// valueLen == 0 marks a tombstone: the key is present in the append log
// but logically deleted.

// varintLen returns the number of bytes encoding(x) would occupy.
func varintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// recordSize returns the total encoded size of a (key, value) record.
func recordSize(keyLen, valLen int) int {
	return varintLen(uint64(keyLen)) + keyLen + varintLen(uint64(valLen)) + valLen
}

// encodeRecord appends one length-prefixed (key, value) record to dst
// and returns the extended slice.
func encodeRecord(dst []byte, key string, value []byte) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(key)))
	dst = append(dst, tmp[:n]...)
	dst = append(dst, key...)
	n = binary.PutUvarint(tmp[:], uint64(len(value)))
	dst = append(dst, tmp[:n]...)
	dst = append(dst, value...)
	return dst
}

// decodeRecords walks a plaintext record stream and applies each record
// to dict in stream order, so a later record for the same key overrides
// an earlier one and a zero-length value tombstones the key.
//
// When copyValues is false, values are stored as slices referencing buf
// directly (zero-copy); callers must only pass false when buf is itself
// a stable, long-lived slice (the unencrypted mapped region). Encrypted
// loads always pass true, since buf there is a transient decrypted copy.
func decodeRecords(buf []byte, dict map[string][]byte, copyValues bool) error {
	pos := 0
	for pos < len(buf) {
		key, valStart, valEnd, next, err := decodeOneRecord(buf, pos)
		if err != nil {
			return err
		}
		if valEnd == valStart {
			delete(dict, key)
		} else if copyValues {
			v := make([]byte, valEnd-valStart)
			copy(v, buf[valStart:valEnd])
			dict[key] = v
		} else {
			dict[key] = buf[valStart:valEnd]
		}
		pos = next
	}
	return nil
}

// decodeOneRecord decodes a single record starting at pos, returning the
// key, the [start,end) span of its value within buf, and the offset of
// the next record.
func decodeOneRecord(buf []byte, pos int) (key string, valStart, valEnd, next int, err error) {
	keyLen, n := binary.Uvarint(buf[pos:])
	if n <= 0 {
		return "", 0, 0, 0, fmt.Errorf("engine: malformed record at offset %d: bad key length varint", pos)
	}
	pos += n
	if pos+int(keyLen) > len(buf) {
		return "", 0, 0, 0, fmt.Errorf("engine: malformed record at offset %d: key overruns buffer", pos)
	}
	key = string(buf[pos : pos+int(keyLen)])
	pos += int(keyLen)

	valLen, n := binary.Uvarint(buf[pos:])
	if n <= 0 {
		return "", 0, 0, 0, fmt.Errorf("engine: malformed record at offset %d: bad value length varint", pos)
	}
	pos += n
	if pos+int(valLen) > len(buf) {
		return "", 0, 0, 0, fmt.Errorf("engine: malformed record at offset %d: value overruns buffer", pos)
	}
	valStart = pos
	valEnd = pos + int(valLen)
	next = valEnd
	return key, valStart, valEnd, next, nil
}

// encodeDict produces a single contiguous plaintext record-stream
// encoding of dict, used by fullWriteback. Tombstones are never present
// in dict, so every record encoded here has a non-empty value.
func encodeDict(dict map[string][]byte) []byte {
	size := 0
	for k, v := range dict {
		size += recordSize(len(k), len(v))
	}
	buf := make([]byte, 0, size)
	for k, v := range dict {
		buf = encodeRecord(buf, k, v)
	}
	return buf
}
