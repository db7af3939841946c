package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// AddressVersion is the NEO N3 address version byte.
const AddressVersion byte = 0x35

// ScriptHash is a 160-bit contract or account identifier stored in the
// canonical little-endian byte order used by the VM and by event payloads.
// Every comparison between identities goes through this type so that
// hex strings, addresses and base64 stack items agree on byte order.
type ScriptHash [20]byte

// ZeroScriptHash is the empty identity.
var ZeroScriptHash ScriptHash

// ParseScriptHash parses the usual big-endian display form ("0x" prefix optional).
func ParseScriptHash(s string) (ScriptHash, error) {
	var h ScriptHash
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return h, fmt.Errorf("domain.ParseScriptHash: %q: %w", s, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("domain.ParseScriptHash: %q: want 20 bytes, got %d", s, len(raw))
	}
	for i := range raw {
		h[i] = raw[len(raw)-1-i]
	}
	return h, nil
}

// MustParseScriptHash is ParseScriptHash for constants and tests.
func MustParseScriptHash(s string) ScriptHash {
	h, err := ParseScriptHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// ScriptHashFromLE builds a hash from little-endian bytes as found in stack items.
func ScriptHashFromLE(b []byte) (ScriptHash, error) {
	var h ScriptHash
	if len(b) != len(h) {
		return h, fmt.Errorf("domain.ScriptHashFromLE: want 20 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ScriptHashFromBase64 decodes a base64 ByteString stack item.
func ScriptHashFromBase64(s string) (ScriptHash, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ZeroScriptHash, fmt.Errorf("domain.ScriptHashFromBase64: %w", err)
	}
	return ScriptHashFromLE(raw)
}

// ScriptHashFromAddress decodes a base58check N3 address.
func ScriptHashFromAddress(addr string) (ScriptHash, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return ZeroScriptHash, fmt.Errorf("domain.ScriptHashFromAddress: %q: %w", addr, err)
	}
	if len(raw) != 25 {
		return ZeroScriptHash, fmt.Errorf("domain.ScriptHashFromAddress: %q: bad length %d", addr, len(raw))
	}
	payload, sum := raw[:21], raw[21:]
	if !bytes.Equal(checksum(payload), sum) {
		return ZeroScriptHash, fmt.Errorf("domain.ScriptHashFromAddress: %q: bad checksum", addr)
	}
	if payload[0] != AddressVersion {
		return ZeroScriptHash, fmt.Errorf("domain.ScriptHashFromAddress: %q: unexpected version 0x%02x", addr, payload[0])
	}
	return ScriptHashFromLE(payload[1:])
}

// Address encodes the hash as a base58check N3 address.
func (h ScriptHash) Address() string {
	payload := make([]byte, 0, 25)
	payload = append(payload, AddressVersion)
	payload = append(payload, h[:]...)
	payload = append(payload, checksum(payload)...)
	return base58.Encode(payload)
}

// LE returns a copy of the little-endian bytes.
func (h ScriptHash) LE() []byte {
	out := make([]byte, len(h))
	copy(out, h[:])
	return out
}

// String returns the big-endian "0x" display form.
func (h ScriptHash) String() string {
	be := make([]byte, len(h))
	for i := range h {
		be[i] = h[len(h)-1-i]
	}
	return "0x" + hex.EncodeToString(be)
}

// IsZero reports whether the hash is unset.
func (h ScriptHash) IsZero() bool {
	return h == ZeroScriptHash
}

// MarshalText keeps the display form in YAML/JSON.
func (h ScriptHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText accepts either the hex display form or an address.
func (h *ScriptHash) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*h = ZeroScriptHash
		return nil
	}
	var (
		parsed ScriptHash
		err    error
	)
	if strings.HasPrefix(s, "N") && len(s) == 34 {
		parsed, err = ScriptHashFromAddress(s)
	} else {
		parsed, err = ParseScriptHash(s)
	}
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:4]
}
