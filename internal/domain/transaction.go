package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// WitnessScope restricts where the signer's witness is valid.
type WitnessScope byte

const (
	ScopeCalledByEntry   WitnessScope = 0x01
	ScopeCustomContracts WitnessScope = 0x10
)

// String returns the RPC name of the scope.
func (s WitnessScope) String() string {
	switch s {
	case ScopeCalledByEntry:
		return "CalledByEntry"
	case ScopeCustomContracts:
		return "CustomContracts"
	default:
		return fmt.Sprintf("WitnessScope(0x%02x)", byte(s))
	}
}

// ParamType is the contract parameter type of a call argument.
type ParamType string

const (
	ParamHash160 ParamType = "Hash160"
	ParamInteger ParamType = "Integer"
	ParamString  ParamType = "String"
	ParamArray   ParamType = "Array"
)

// Param is a typed contract argument.
type Param struct {
	Type    ParamType
	Hash    ScriptHash
	Integer *big.Int
	Str     string
	Items   []Param
}

func Hash160Param(h ScriptHash) Param { return Param{Type: ParamHash160, Hash: h} }
func IntegerParam(n *big.Int) Param { return Param{Type: ParamInteger, Integer: new(big.Int).Set(n)} }
func Int64Param(n int64) Param { return Param{Type: ParamInteger, Integer: big.NewInt(n)} }
func StringParam(s string) Param { return Param{Type: ParamString, Str: s} }
func ArrayParam(items ...Param) Param { return Param{Type: ParamArray, Items: items} }

// String renders the argument for logs.
func (p Param) String() string {
	switch p.Type {
	case ParamHash160:
		return p.Hash.String()
	case ParamInteger:
		if p.Integer == nil {
			return "0"
		}
		return p.Integer.String()
	case ParamString:
		if len(p.Str) > 24 {
			return fmt.Sprintf("%q...", p.Str[:24])
		}
		return fmt.Sprintf("%q", p.Str)
	case ParamArray:
		parts := make([]string, len(p.Items))
		for i, it := range p.Items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return string(p.Type)
	}
}

// ContractCall is the write operation a transaction carries.
type ContractCall struct {
	Contract         ScriptHash
	Operation        string
	Args             []Param
	Scope            WitnessScope
	AllowedContracts []ScriptHash // only for ScopeCustomContracts
}

// Describe is the short label used in logs and alerts.
func (c ContractCall) Describe() string {
	return fmt.Sprintf("%s::%s", c.Contract, c.Operation)
}

// Transaction is a built, fee-estimated transaction ready to be signed.
// Fees are only set by the fee estimator after both probes succeeded.
type Transaction struct {
	Call            ContractCall
	Script          []byte
	Nonce           uint32
	ValidUntilBlock uint32
	NetworkFee      int64
	SystemFee       int64

	feesSet bool
}

// SetFees records both fees at once.
func (t *Transaction) SetFees(network, system int64) {
	t.NetworkFee = network
	t.SystemFee = system
	t.feesSet = true
}

// FeesSet reports whether the transaction may be submitted.
func (t *Transaction) FeesSet() bool {
	return t.feesSet
}
