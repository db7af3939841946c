package domain

import (
	"encoding/base64"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// StackValue is one typed VM stack item as it appears in RPC results and
// notification payloads: {"type": "...", "value": ...}.
type StackValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ChainEvent is a contract notification observed on the event stream.
type ChainEvent struct {
	TxID     string
	Contract ScriptHash
	Name     string
	Values   []StackValue
}

// Value returns the i-th state item, or false when the payload is shorter.
func (e ChainEvent) Value(i int) (StackValue, bool) {
	if i < 0 || i >= len(e.Values) {
		return StackValue{}, false
	}
	return e.Values[i], true
}

// HashAt decodes the i-th item as a script hash. Null or malformed items never match.
func (e ChainEvent) HashAt(i int) (ScriptHash, bool) {
	v, ok := e.Value(i)
	if !ok {
		return ZeroScriptHash, false
	}
	return v.ScriptHash()
}

// IntegerAt decodes the i-th item as an integer amount.
func (e ChainEvent) IntegerAt(i int) (decimal.Decimal, bool) {
	v, ok := e.Value(i)
	if !ok {
		return decimal.Zero, false
	}
	return v.Integer()
}

// Bytes decodes ByteString/Buffer items.
func (v StackValue) Bytes() ([]byte, bool) {
	if v.Type != "ByteString" && v.Type != "Buffer" {
		return nil, false
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// ScriptHash decodes a 20-byte ByteString item.
func (v StackValue) ScriptHash() (ScriptHash, bool) {
	raw, ok := v.Bytes()
	if !ok {
		return ZeroScriptHash, false
	}
	h, err := ScriptHashFromLE(raw)
	if err != nil {
		return ZeroScriptHash, false
	}
	return h, true
}

// Integer decodes Integer items (string or number encoded).
func (v StackValue) Integer() (decimal.Decimal, bool) {
	if v.Type != "Integer" {
		return decimal.Zero, false
	}
	var d decimal.Decimal
	if err := json.Unmarshal(v.Value, &d); err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Array decodes Array/Struct items.
func (v StackValue) Array() ([]StackValue, bool) {
	if v.Type != "Array" && v.Type != "Struct" {
		return nil, false
	}
	var items []StackValue
	if err := json.Unmarshal(v.Value, &items); err != nil {
		return nil, false
	}
	return items, true
}

// Text decodes a ByteString item as UTF-8.
func (v StackValue) Text() (string, bool) {
	raw, ok := v.Bytes()
	if !ok {
		return "", false
	}
	return string(raw), true
}
