package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainLayout   = "splitscript/layout/v1"
	DomainSnapshot = "splitscript/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayoutHash computes a stable identity for a descriptor layout. Two
// descriptors with the same process, version and fields hash identically.
func LayoutHash(layout Object) (string, error) {
	canonical, err := MarshalCanonical(layout)
	if err != nil {
		return "", fmt.Errorf("LayoutHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLayout, canonical), nil
}

// SnapshotHash computes a digest of sampled values, used to detect whether a
// refresh changed anything.
func SnapshotHash(values Object) (string, error) {
	canonical, err := MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustLayoutHash is like LayoutHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustLayoutHash(layout Object) string {
	h, err := LayoutHash(layout)
	if err != nil {
		panic(err)
	}
	return h
}
