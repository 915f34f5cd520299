// Package fingerprint derives stable identifiers from document content.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"strings"
)

// Pending is returned while no accounting key is known yet.
const Pending = "pending"

// Compute returns the fingerprint of a document for a given accounting key
// (the invoice number). Both inputs are length-prefixed before hashing so that
// moving bytes between content and key always changes the result.
func Compute(content []byte, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return Pending
	}
	h := sha256.New()
	writeField(h, content)
	writeField(h, []byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// ContentID identifies a document by its bytes alone.
func ContentID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// IsPending reports whether fp is the pending sentinel.
func IsPending(fp string) bool {
	return fp == Pending
}

func writeField(h io.Writer, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}
