package neo

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// PolicyContract is the native contract exposing getFeePerByte.
var PolicyContract = domain.MustParseScriptHash("0xcc5e4edd9f5f8dba8bb65734541df7a1c081c67b")

// feePerByte reads the current network fee per byte. The probe must HALT.
func (c *Client) feePerByte(ctx context.Context) (int64, error) {
	var res invokeResult
	if err := c.rpc.call(ctx, &res, "invokefunction", PolicyContract.String(), "getFeePerByte", []rpcParam{}); err != nil {
		return 0, err
	}
	v, err := res.first()
	if err != nil {
		return 0, fmt.Errorf("getFeePerByte: %w", err)
	}
	n, ok := v.Integer()
	if !ok || n.IsNegative() {
		return 0, fmt.Errorf("getFeePerByte: unexpected %s item", v.Type)
	}
	return n.IntPart(), nil
}

// networkFee = feePerByte * (unsigned size + witness overhead) + witness verification cost.
func networkFee(feePerByte int64, unsignedSize int) int64 {
	return feePerByte*int64(unsignedSize+witnessSizeOverhead) + witnessVerifyFee
}

// systemFee simulates the script with the same signers and returns the gas consumed.
func (c *Client) systemFee(ctx context.Context, tx *domain.Transaction) (int64, error) {
	var res invokeResult
	err := c.rpc.call(ctx, &res, "invokescript", encodeBase64(tx.Script), toRPCSigners(c.account, tx.Call))
	if err != nil {
		return 0, err
	}
	if err := res.halted(); err != nil {
		return 0, fmt.Errorf("invokescript: %w", err)
	}
	var gas int64
	if _, err := fmt.Sscan(res.GasConsumed, &gas); err != nil || gas < 0 {
		return 0, fmt.Errorf("invokescript: invalid gasconsumed %q", res.GasConsumed)
	}
	return gas, nil
}

// estimateFees sets both fees on tx, or neither.
func (c *Client) estimateFees(ctx context.Context, tx *domain.Transaction) error {
	perByte, err := c.feePerByte(ctx)
	if err != nil {
		return fmt.Errorf("network fee: %w: %w", domain.ErrFeeEstimation, err)
	}
	sys, err := c.systemFee(ctx, tx)
	if err != nil {
		return fmt.Errorf("system fee: %w: %w", domain.ErrFeeEstimation, err)
	}
	// Las fees forman parte del tamaño serializado pero su ancho es fijo (8 bytes cada una).
	size := len(encodeUnsigned(tx, c.account))
	tx.SetFees(networkFee(perByte, size), sys)
	return nil
}
