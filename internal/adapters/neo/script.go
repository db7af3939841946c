package neo

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// NeoVM opcodes used by the script builder.
const (
	opPUSHINT8  byte = 0x00
	opPUSHDATA1 byte = 0x0C
	opPUSHDATA2 byte = 0x0D
	opPUSHDATA4 byte = 0x0E
	opPUSHM1    byte = 0x0F
	opPUSH0     byte = 0x10
	opSYSCALL   byte = 0x41
	opPACK      byte = 0xC0
	opNEWARRAY0 byte = 0xC2
)

// callFlagsAll is CallFlags.All (ReadStates|WriteStates|AllowCall|AllowNotify).
const callFlagsAll = 15

var (
	syscallContractCall = interopID("System.Contract.Call")
	syscallCheckSig     = interopID("System.Crypto.CheckSig")
)

// interopID is the 4-byte syscall identifier: the first bytes of sha256(name).
func interopID(name string) [4]byte {
	sum := sha256.Sum256([]byte(name))
	var id [4]byte
	copy(id[:], sum[:4])
	return id
}

// scriptBuilder emits NeoVM bytecode.
type scriptBuilder struct {
	buf []byte
}

func (b *scriptBuilder) bytes() []byte { return b.buf }

func (b *scriptBuilder) emit(op byte, operand ...byte) {
	b.buf = append(b.buf, op)
	b.buf = append(b.buf, operand...)
}

func (b *scriptBuilder) syscall(id [4]byte) {
	b.emit(opSYSCALL, id[:]...)
}

// pushInt emits the shortest push for n: PUSHM1/PUSH0..16 or PUSHINT8..256.
func (b *scriptBuilder) pushInt(n *big.Int) error {
	if n.IsInt64() {
		v := n.Int64()
		if v == -1 {
			b.emit(opPUSHM1)
			return nil
		}
		if v >= 0 && v <= 16 {
			b.emit(opPUSH0 + byte(v))
			return nil
		}
	}
	raw := twosComplementLE(n)
	for i, size := range []int{1, 2, 4, 8, 16, 32} {
		if len(raw) <= size {
			b.emit(opPUSHINT8+byte(i), padLE(raw, size, n.Sign() < 0)...)
			return nil
		}
	}
	return fmt.Errorf("integer %s exceeds 256 bits", n)
}

func (b *scriptBuilder) pushData(data []byte) {
	n := len(data)
	switch {
	case n < 0x100:
		b.emit(opPUSHDATA1, byte(n))
	case n < 0x10000:
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(n))
		b.emit(opPUSHDATA2, l[:]...)
	default:
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(n))
		b.emit(opPUSHDATA4, l[:]...)
	}
	b.buf = append(b.buf, data...)
}

func (b *scriptBuilder) pushParam(p domain.Param) error {
	switch p.Type {
	case domain.ParamHash160:
		b.pushData(p.Hash.LE())
	case domain.ParamInteger:
		n := p.Integer
		if n == nil {
			n = new(big.Int)
		}
		return b.pushInt(n)
	case domain.ParamString:
		b.pushData([]byte(p.Str))
	case domain.ParamArray:
		return b.pushArray(p.Items)
	default:
		return fmt.Errorf("unsupported param type %q", p.Type)
	}
	return nil
}

// pushArray pushes items in reverse order followed by PACK, or NEWARRAY0 when empty.
func (b *scriptBuilder) pushArray(items []domain.Param) error {
	if len(items) == 0 {
		b.emit(opNEWARRAY0)
		return nil
	}
	for i := len(items) - 1; i >= 0; i-- {
		if err := b.pushParam(items[i]); err != nil {
			return err
		}
	}
	if err := b.pushInt(big.NewInt(int64(len(items)))); err != nil {
		return err
	}
	b.emit(opPACK)
	return nil
}

// ContractCallScript builds the invocation script of a contract call with all call flags.
func ContractCallScript(call domain.ContractCall) ([]byte, error) {
	var b scriptBuilder
	if err := b.pushArray(call.Args); err != nil {
		return nil, fmt.Errorf("neo.ContractCallScript: %s: %w", call.Describe(), err)
	}
	if err := b.pushInt(big.NewInt(callFlagsAll)); err != nil {
		return nil, err
	}
	b.pushData([]byte(call.Operation))
	b.pushData(call.Contract.LE())
	b.syscall(syscallContractCall)
	return b.bytes(), nil
}

// twosComplementLE returns the minimal little-endian two's complement encoding of n.
func twosComplementLE(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{0}
	}
	var be []byte
	if n.Sign() > 0 {
		be = n.Bytes()
		if be[0]&0x80 != 0 {
			be = append([]byte{0}, be...)
		}
	} else {
		// -n-1 en complemento: invertir los bits de (|n|-1)
		m := new(big.Int).Neg(n)
		m.Sub(m, big.NewInt(1))
		be = m.Bytes()
		for i := range be {
			be[i] = ^be[i]
		}
		if len(be) == 0 || be[0]&0x80 == 0 {
			be = append([]byte{0xFF}, be...)
		}
	}
	le := make([]byte, len(be))
	for i := range be {
		le[i] = be[len(be)-1-i]
	}
	return le
}

func padLE(raw []byte, size int, negative bool) []byte {
	out := make([]byte, size)
	copy(out, raw)
	if negative {
		for i := len(raw); i < size; i++ {
			out[i] = 0xFF
		}
	}
	return out
}
