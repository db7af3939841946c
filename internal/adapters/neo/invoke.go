package neo

import (
	"fmt"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

const stateHalt = "HALT"

// invokeResult is the response of invokefunction / invokescript.
type invokeResult struct {
	Script      string              `json:"script"`
	State       string              `json:"state"`
	GasConsumed string              `json:"gasconsumed"`
	Exception   *string             `json:"exception"`
	Stack       []domain.StackValue `json:"stack"`
}

func (r invokeResult) halted() error {
	if r.State == stateHalt {
		return nil
	}
	msg := ""
	if r.Exception != nil {
		msg = *r.Exception
	}
	return fmt.Errorf("vm state %s: %s", r.State, msg)
}

func (r invokeResult) first() (domain.StackValue, error) {
	if err := r.halted(); err != nil {
		return domain.StackValue{}, err
	}
	if len(r.Stack) == 0 {
		return domain.StackValue{}, fmt.Errorf("empty result stack")
	}
	return r.Stack[0], nil
}

// rpcParam is the JSON form of a contract parameter for invokefunction.
type rpcParam struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func toRPCParam(p domain.Param) rpcParam {
	switch p.Type {
	case domain.ParamHash160:
		return rpcParam{Type: string(p.Type), Value: p.Hash.String()}
	case domain.ParamInteger:
		v := "0"
		if p.Integer != nil {
			v = p.Integer.String()
		}
		return rpcParam{Type: string(p.Type), Value: v}
	case domain.ParamString:
		return rpcParam{Type: string(p.Type), Value: p.Str}
	case domain.ParamArray:
		items := make([]rpcParam, len(p.Items))
		for i, it := range p.Items {
			items[i] = toRPCParam(it)
		}
		return rpcParam{Type: string(p.Type), Value: items}
	default:
		return rpcParam{Type: "Any", Value: nil}
	}
}

func toRPCParams(args []domain.Param) []rpcParam {
	out := make([]rpcParam, len(args))
	for i, a := range args {
		out[i] = toRPCParam(a)
	}
	return out
}

// rpcSigner is the JSON form of a signer for invokescript.
type rpcSigner struct {
	Account          string   `json:"account"`
	Scopes           string   `json:"scopes"`
	AllowedContracts []string `json:"allowedcontracts,omitempty"`
}

func toRPCSigners(account domain.ScriptHash, call domain.ContractCall) []rpcSigner {
	s := rpcSigner{Account: account.String(), Scopes: call.Scope.String()}
	if call.Scope == domain.ScopeCustomContracts {
		for _, h := range call.AllowedContracts {
			s.AllowedContracts = append(s.AllowedContracts, h.String())
		}
	}
	return []rpcSigner{s}
}
