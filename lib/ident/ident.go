// Package ident implements identifier-to-filename sanitization: the
// user-supplied store identifier and optional relative path are turned
// into the pair of on-disk file names the engine maps.
package ident

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// specialChars is the set of characters that are unsafe to use directly
// in a filename and trigger the md5-hashed encoding.
const specialChars = `\/:*?"<>|`

// DefaultRelativePath is the sentinel meaning "no namespacing beyond
// the root directory".
const DefaultRelativePath = ""

// Encode returns the data and meta file names for id under
// relativePath. When id contains any of the special characters, the
// encoded form is "specialCharacter/<md5(id)>". A non-default
// relativePath namespaces id via md5(relativePath + "/" + id) instead.
func Encode(id, relativePath string) (dataFileName, metaFileName string) {
	name := encodeName(id, relativePath)
	return name, name + ".crc"
}

func encodeName(id, relativePath string) string {
	if relativePath != DefaultRelativePath {
		return "" +
			md5Hex(relativePath+"/"+id)
	}
	if strings.ContainsAny(id, specialChars) {
		return "specialCharacter/" + md5Hex(id)
	}
	return id
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
