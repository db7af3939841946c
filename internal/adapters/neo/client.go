package neo

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// validityWindow is how many blocks a built transaction stays valid.
const validityWindow = 10

// Client implements ports.Chain for one signing account.
// Without a key it is watch-only: it can build and estimate, but not send.
type Client struct {
	rpc     *RPC
	magic   uint32
	account domain.ScriptHash
	signer  *Account
}

// NewClient creates a signing client.
func NewClient(r *RPC, magic uint32, signer *Account) *Client {
	return &Client{rpc: r, magic: magic, account: signer.ScriptHash(), signer: signer}
}

// NewWatchOnlyClient creates a client that can only build transactions for account.
func NewWatchOnlyClient(r *RPC, magic uint32, account domain.ScriptHash) *Client {
	return &Client{rpc: r, magic: magic, account: account}
}

func (c *Client) Account() domain.ScriptHash {
	return c.account
}

// BlockCount returns the current chain height.
func (c *Client) BlockCount(ctx context.Context) (uint32, error) {
	var height uint32
	if err := c.rpc.call(ctx, &height, "getblockcount"); err != nil {
		return 0, fmt.Errorf("neo.Client.BlockCount: %w", err)
	}
	return height, nil
}

// Build creates a fresh transaction (new nonce and expiry) and estimates both fees.
func (c *Client) Build(ctx context.Context, call domain.ContractCall) (*domain.Transaction, error) {
	script, err := ContractCallScript(call)
	if err != nil {
		return nil, fmt.Errorf("neo.Client.Build: %w", err)
	}
	height, err := c.BlockCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("neo.Client.Build: %w: %w", domain.ErrFeeEstimation, err)
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, fmt.Errorf("neo.Client.Build: %w", err)
	}

	tx := &domain.Transaction{
		Call:            call,
		Script:          script,
		Nonce:           nonce,
		ValidUntilBlock: height + validityWindow,
	}
	if err := c.estimateFees(ctx, tx); err != nil {
		return nil, fmt.Errorf("neo.Client.Build: %s: %w", call.Describe(), err)
	}

	slog.Debug("transaction built",
		"call", call.Describe(),
		"args", fmt.Sprint(call.Args),
		"scope", call.Scope.String(),
		"valid_until", tx.ValidUntilBlock,
		"network_fee", tx.NetworkFee,
		"system_fee", tx.SystemFee,
	)
	return tx, nil
}

// Send signs and broadcasts the transaction once. It refuses transactions without fees.
func (c *Client) Send(ctx context.Context, tx *domain.Transaction) (string, error) {
	if !tx.FeesSet() {
		return "", fmt.Errorf("neo.Client.Send: %s: fees not estimated: %w", tx.Call.Describe(), domain.ErrSubmission)
	}
	if c.signer == nil {
		return "", fmt.Errorf("neo.Client.Send: watch-only account %s: %w", c.account.Address(), domain.ErrSubmission)
	}

	unsigned := encodeUnsigned(tx, c.account)
	hash := txHash(unsigned)
	sig, err := c.signer.Sign(signData(c.magic, hash))
	if err != nil {
		return "", fmt.Errorf("neo.Client.Send: %w: %w", domain.ErrSubmission, err)
	}
	raw := encodeSigned(unsigned, c.signer.witness(sig))

	var res struct {
		Hash string `json:"hash"`
	}
	if err := c.rpc.callOnce(ctx, &res, "sendrawtransaction", encodeBase64(raw)); err != nil {
		return "", fmt.Errorf("neo.Client.Send: %w: %w", domain.ErrSubmission, err)
	}
	if res.Hash == "" {
		res.Hash = txID(hash)
	}
	return res.Hash, nil
}

func randomNonce() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("nonce: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
