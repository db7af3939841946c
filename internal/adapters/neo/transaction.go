package neo

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

const txVersion byte = 0

// Fixed network fee components for a single-signature account witness.
const (
	witnessSizeOverhead = 109
	witnessVerifyFee    = 1000390
)

type witness struct {
	invocation   []byte
	verification []byte
}

// encodeUnsigned serializes the transaction without witnesses.
func encodeUnsigned(tx *domain.Transaction, signer domain.ScriptHash) []byte {
	var buf bytes.Buffer
	buf.WriteByte(txVersion)
	writeU32(&buf, tx.Nonce)
	writeU64(&buf, uint64(tx.SystemFee))
	writeU64(&buf, uint64(tx.NetworkFee))
	writeU32(&buf, tx.ValidUntilBlock)

	// signers
	writeVarUint(&buf, 1)
	buf.Write(signer.LE())
	buf.WriteByte(byte(tx.Call.Scope))
	if tx.Call.Scope == domain.ScopeCustomContracts {
		writeVarUint(&buf, uint64(len(tx.Call.AllowedContracts)))
		for _, h := range tx.Call.AllowedContracts {
			buf.Write(h.LE())
		}
	}

	// attributes
	writeVarUint(&buf, 0)

	writeVarBytes(&buf, tx.Script)
	return buf.Bytes()
}

// encodeSigned appends the witness list to the unsigned form.
func encodeSigned(unsigned []byte, w witness) []byte {
	buf := bytes.NewBuffer(append([]byte(nil), unsigned...))
	writeVarUint(buf, 1)
	writeVarBytes(buf, w.invocation)
	writeVarBytes(buf, w.verification)
	return buf.Bytes()
}

// txHash is sha256 of the unsigned form.
func txHash(unsigned []byte) [32]byte {
	return sha256.Sum256(unsigned)
}

// txID renders the hash the way the node reports it: reversed, 0x-prefixed.
func txID(hash [32]byte) string {
	rev := make([]byte, len(hash))
	for i := range hash {
		rev[i] = hash[len(hash)-1-i]
	}
	return "0x" + hex.EncodeToString(rev)
}

// signData is the message the witness signs: network magic followed by the tx hash.
func signData(magic uint32, hash [32]byte) []byte {
	out := make([]byte, 4, 4+len(hash))
	binary.LittleEndian.PutUint32(out, magic)
	return append(out, hash[:]...)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeVarUint(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xFD:
		buf.WriteByte(byte(v))
	case v <= 0xFFFF:
		buf.WriteByte(0xFD)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	case v <= 0xFFFFFFFF:
		buf.WriteByte(0xFE)
		writeU32(buf, uint32(v))
	default:
		buf.WriteByte(0xFF)
		writeU64(buf, v)
	}
}

func writeVarBytes(buf *bytes.Buffer, data []byte) {
	writeVarUint(buf, uint64(len(data)))
	buf.Write(data)
}
