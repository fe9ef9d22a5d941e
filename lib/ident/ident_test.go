package ident

import (
	"crypto/md5"
	"encoding/hex"
	"testing"
)

func TestEncodePlainID(t *testing.T) {
	data, meta := Encode("mystore", DefaultRelativePath)
	if data != "mystore" {
		t.Fatalf("expected plain id passthrough, got %q", data)
	}
	if meta != "mystore.crc" {
		t.Fatalf("expected .crc suffix, got %q", meta)
	}
}

func TestEncodeSpecialCharacters(t *testing.T) {
	cases := []string{"a/b", "a:b", "a*b", `a\b`, `a"b`, "a<b", "a>b", "a|b", "a?b"}
	for _, id := range cases {
		t.Run(id, func(t *testing.T) {
			data, _ := Encode(id, DefaultRelativePath)
			sum := md5.Sum([]byte(id))
			want := "specialCharacter/" + hex.EncodeToString(sum[:])
			if data != want {
				t.Fatalf("Encode(%q) = %q, want %q", id, data, want)
			}
		})
	}
}

func TestEncodeRelativePath(t *testing.T) {
	data, _ := Encode("mystore", "sub/dir")
	sum := md5.Sum([]byte("sub/dir/mystore"))
	want := hex.EncodeToString(sum[:])
	if data != want {
		t.Fatalf("Encode with relative path = %q, want %q", data, want)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, _ := Encode("id-with/slash", DefaultRelativePath)
	b, _ := Encode("id-with/slash", DefaultRelativePath)
	if a != b {
		t.Fatalf("encoding is not deterministic: %q != %q", a, b)
	}
}
