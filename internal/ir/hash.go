package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNode  = "iadas/node/v2"
	DomainQuery = "iadas/query/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NodeHash computes the identity of a graph value node from its
// (property, display) key. The key is hashed byte for byte: two keys hash
// alike only when both parts are identical, including differently
// normalized or invalid UTF-8 text. The property is length-prefixed so
// the split point between the parts is part of the identity.
func NodeHash(property, display string) string {
	data := make([]byte, 0, len(property)+len(display)+8)
	data = strconv.AppendInt(data, int64(len(property)), 10)
	data = append(data, ':')
	data = append(data, property...)
	data = append(data, display...)
	return hashWithDomain(DomainNode, data)
}

// QueryHash computes the identity of a rendered query text. Used by the
// write journal to recognise repeated submissions of the same update;
// canonically equivalent text counts as the same update.
func QueryHash(kind, text string) (string, error) {
	canonical, err := MarshalCanonical(Fields{
		"kind": kind,
		"text": text,
	})
	if err != nil {
		return "", fmt.Errorf("QueryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}
