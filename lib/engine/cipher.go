package engine

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"fmt"
)

// Cipher is a keyed stream cipher over the record region, with a fixed
// 16-byte key and 16-byte IV. It implements the encryption filter
// contract: encrypt/decrypt are in-place safe, ciphertext length always
// equals plaintext length, and Reset re-seeds the IV and rewinds the
// stream position to zero.
//
// The cipher runs in AES-CTR rather than CFB. CTR's keystream at byte
// offset i depends only on i, not on prior ciphertext or plaintext, so
// resuming a logical stream across separate calls -- decrypt on load,
// encrypt on the next append, potentially minutes apart -- is simply a
// matter of keeping the *cipher.Stream alive and calling XORKeyStream
// again; there is no feedback register to reconstruct.
type Cipher struct {
	block cipher.Block
	key   [16]byte
	iv    [16]byte
	s     cipher.Stream
}

// NewCipher derives a 16-byte AES key from rawKey via MD5, matching the
// fixed-key-length contract of the encryption filter.
func NewCipher(rawKey []byte) (*Cipher, error) {
	if len(rawKey) == 0 {
		return nil, fmt.Errorf("engine: empty crypt key")
	}
	key := md5.Sum(rawKey)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("engine: new aes cipher: %w", err)
	}
	c := &Cipher{block: block, key: key}
	return c, nil
}

// Reset re-seeds the IV and rewinds the stream to offset zero.
func (c *Cipher) Reset(iv []byte) {
	copy(c.iv[:], iv)
	c.s = cipher.NewCTR(c.block, c.iv[:])
}

// RandomIV generates a fresh cryptographically random 16-byte IV and
// resets the stream to use it, as required on every full writeback.
func (c *Cipher) RandomIV() ([]byte, error) {
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("engine: generate iv: %w", err)
	}
	c.Reset(iv)
	return iv, nil
}

// Encrypt XORs src into dst using the current stream position, advancing
// the position by len(src). dst and src may overlap exactly (in-place).
func (c *Cipher) Encrypt(dst, src []byte) {
	c.s.XORKeyStream(dst, src)
}

// Decrypt is identical to Encrypt: CTR mode is symmetric.
func (c *Cipher) Decrypt(dst, src []byte) {
	c.s.XORKeyStream(dst, src)
}

// IV returns the currently active IV.
func (c *Cipher) IV() []byte {
	return c.iv[:]
}

// Key returns the derived 16-byte AES key.
func (c *Cipher) Key() []byte {
	return c.key[:]
}
