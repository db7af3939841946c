package neo

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // NEO script hashes are defined over RIPEMD-160
)

const wifVersion byte = 0x80

// Account is a single-signature secp256r1 account.
type Account struct {
	key          *ecdsa.PrivateKey
	verification []byte
	hash         domain.ScriptHash
}

// ParseAccount accepts a WIF string or a 64-char hex private key.
func ParseAccount(secret string) (*Account, error) {
	secret = strings.TrimSpace(secret)
	raw, err := decodePrivateKey(secret)
	if err != nil {
		return nil, fmt.Errorf("neo.ParseAccount: %w", err)
	}
	return newAccount(raw)
}

func decodePrivateKey(secret string) ([]byte, error) {
	if len(secret) == 64 {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw, nil
		}
	}
	data, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("not hex nor WIF: %w", err)
	}
	if len(data) != 38 || data[0] != wifVersion || data[33] != 0x01 {
		return nil, fmt.Errorf("invalid WIF payload")
	}
	sum := doubleSHA256(data[:34])
	if !bytes.Equal(sum[:4], data[34:]) {
		return nil, fmt.Errorf("invalid WIF checksum")
	}
	return data[1:33], nil
}

func newAccount(raw []byte) (*Account, error) {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("neo.newAccount: private key out of range")
	}
	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(raw)

	pub := elliptic.MarshalCompressed(curve, key.PublicKey.X, key.PublicKey.Y)
	verification := VerificationScript(pub)
	return &Account{
		key:          key,
		verification: verification,
		hash:         ScriptHashOf(verification),
	}, nil
}

// VerificationScript is PUSHDATA1 <compressed pubkey> SYSCALL CheckSig.
func VerificationScript(compressedPub []byte) []byte {
	var b scriptBuilder
	b.pushData(compressedPub)
	b.syscall(syscallCheckSig)
	return b.bytes()
}

// ScriptHashOf returns ripemd160(sha256(script)) as a script hash.
func ScriptHashOf(script []byte) domain.ScriptHash {
	sha := sha256.Sum256(script)
	r := ripemd160.New()
	r.Write(sha[:])
	h, _ := domain.ScriptHashFromLE(r.Sum(nil))
	return h
}

// ScriptHash is the account the witness proves.
func (a *Account) ScriptHash() domain.ScriptHash {
	return a.hash
}

// Sign returns the 64-byte r||s signature of sha256(data).
func (a *Account) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, a.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("neo.Account.Sign: %w", err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

// witness builds the invocation/verification pair for a signature.
func (a *Account) witness(sig []byte) witness {
	var inv scriptBuilder
	inv.pushData(sig)
	return witness{invocation: inv.bytes(), verification: a.verification}
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
