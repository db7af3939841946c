package neo

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteropIDs(t *testing.T) {
	assert.Equal(t, "627d5b52", hex.EncodeToString(syscallContractCall[:]))
	assert.Equal(t, "56e7b327", hex.EncodeToString(syscallCheckSig[:]))
}

func TestPushInt(t *testing.T) {
	cases := map[int64]string{
		-1:    "0f",
		0:     "10",
		16:    "20",
		20:    "0014",
		-2:    "00fe",
		127:   "007f",
		128:   "018000",
		255:   "01ff00",
		1000:  "01e803",
		-129:  "017fff",
		65536: "0200000100",
	}
	for n, want := range cases {
		var b scriptBuilder
		require.NoError(t, b.pushInt(big.NewInt(n)))
		assert.Equal(t, want, hex.EncodeToString(b.bytes()), "n=%d", n)
	}
}

func TestPushInt_Large(t *testing.T) {
	// 10^20 no cabe en int64: PUSHINT128
	n := new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	var b scriptBuilder
	require.NoError(t, b.pushInt(n))
	assert.Equal(t, byte(0x03), b.bytes()[0])
	assert.Len(t, b.bytes(), 17)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 300)
	assert.Error(t, b.pushInt(tooBig))
}

func TestContractCallScript_NoArgs(t *testing.T) {
	token := domain.MustParseScriptHash("0xd2a4cff31913016155e38e474a2c06d08be276cf")
	script, err := ContractCallScript(domain.ContractCall{Contract: token, Operation: "symbol"})
	require.NoError(t, err)

	want := "c2" + "1f" + "0c06" + hex.EncodeToString([]byte("symbol")) +
		"0c14" + hex.EncodeToString(token.LE()) + "41627d5b52"
	assert.Equal(t, want, hex.EncodeToString(script))
}

func TestContractCallScript_ArgsReversedAndPacked(t *testing.T) {
	contract := domain.MustParseScriptHash("0x1111111111111111111111111111111111111111")
	owner := domain.MustParseScriptHash("0x2222222222222222222222222222222222222222")
	script, err := ContractCallScript(domain.ContractCall{
		Contract:  contract,
		Operation: "withdraw",
		Args:      []domain.Param{domain.Int64Param(5), domain.Hash160Param(owner)},
	})
	require.NoError(t, err)

	want := "0c14" + hex.EncodeToString(owner.LE()) + // último argumento primero
		"15" + // PUSH5
		"12" + "c0" + // PUSH2 PACK
		"1f" + "0c08" + hex.EncodeToString([]byte("withdraw")) +
		"0c14" + hex.EncodeToString(contract.LE()) + "41627d5b52"
	assert.Equal(t, want, hex.EncodeToString(script))
}

func TestContractCallScript_NestedArray(t *testing.T) {
	contract := domain.MustParseScriptHash("0x1111111111111111111111111111111111111111")
	script, err := ContractCallScript(domain.ContractCall{
		Contract:  contract,
		Operation: "transfer",
		Args:      []domain.Param{domain.ArrayParam(domain.StringParam("LIQUIDATE_OCP")), domain.ArrayParam()},
	})
	require.NoError(t, err)
	// args invertidos: primero el array vacío (NEWARRAY0), luego ["LIQUIDATE_OCP"]
	prefix := "c2" + "0c0d" + hex.EncodeToString([]byte("LIQUIDATE_OCP")) + "11c0" + "12c0"
	assert.Equal(t, prefix, hex.EncodeToString(script[:len(prefix)/2]))
}

func TestAccount_WIFAndHexAgree(t *testing.T) {
	raw := make([]byte, 32)
	raw[31] = 0x2a
	payload := append([]byte{wifVersion}, raw...)
	payload = append(payload, 0x01)
	sum := doubleSHA256(payload)
	wif := base58.Encode(append(payload, sum[:4]...))

	fromWIF, err := ParseAccount(wif)
	require.NoError(t, err)
	fromHex, err := ParseAccount(hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, fromHex.ScriptHash(), fromWIF.ScriptHash())

	v := fromWIF.verification
	require.Len(t, v, 40)
	assert.Equal(t, "0c21", hex.EncodeToString(v[:2]))
	assert.Equal(t, "4156e7b327", hex.EncodeToString(v[35:]))
	assert.Equal(t, ScriptHashOf(v), fromWIF.ScriptHash())
	assert.Equal(t, byte('N'), fromWIF.ScriptHash().Address()[0])
}

func TestParseAccount_Invalid(t *testing.T) {
	_, err := ParseAccount("not-a-key")
	assert.Error(t, err)

	_, err = ParseAccount(hex.EncodeToString(make([]byte, 32)))
	assert.Error(t, err, "clave cero fuera de rango")
}

func TestAccount_SignVerifies(t *testing.T) {
	acc := testAccount(t)
	data := []byte("payload")
	sig, err := acc.Sign(data)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	digest := sha256.Sum256(data)
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	assert.True(t, ecdsa.Verify(&acc.key.PublicKey, digest[:], r, s))
}

func TestEncodeUnsigned_Layout(t *testing.T) {
	signer := domain.MustParseScriptHash("0x2222222222222222222222222222222222222222")
	router := domain.MustParseScriptHash("0x3333333333333333333333333333333333333333")
	from := domain.MustParseScriptHash("0x4444444444444444444444444444444444444444")
	tx := &domain.Transaction{
		Call: domain.ContractCall{
			Scope:            domain.ScopeCustomContracts,
			AllowedContracts: []domain.ScriptHash{router, from},
		},
		Script:          []byte{0x40},
		Nonce:           0x01020304,
		ValidUntilBlock: 100,
	}
	tx.SetFees(7, 9)

	raw := encodeUnsigned(tx, signer)
	want := "00" + "04030201" +
		"0900000000000000" + "0700000000000000" +
		"64000000" +
		"01" + hex.EncodeToString(signer.LE()) + "10" +
		"02" + hex.EncodeToString(router.LE()) + hex.EncodeToString(from.LE()) +
		"00" +
		"0140"
	assert.Equal(t, want, hex.EncodeToString(raw))

	calledByEntry := *tx
	calledByEntry.Call.Scope = domain.ScopeCalledByEntry
	assert.Len(t, encodeUnsigned(&calledByEntry, signer), len(raw)-41, "sin allowed contracts")
}

func TestSignDataAndTxID(t *testing.T) {
	var hash [32]byte
	hash[0] = 0xab
	data := signData(860833102, hash)
	assert.Equal(t, "4e454f33", hex.EncodeToString(data[:4]), "magic en little-endian")
	assert.Equal(t, hash[:], data[4:])

	id := txID(hash)
	assert.Len(t, id, 66)
	assert.Equal(t, "ab", id[len(id)-2:])
}

func TestNetworkFee(t *testing.T) {
	assert.Equal(t, int64(1000*(200+109)+1000390), networkFee(1000, 200))
}

func testAccount(t *testing.T) *Account {
	t.Helper()
	acc, err := ParseAccount("8254c329a92850f6d539dd376f4816ee2764517da5e0235514af433164480d7a")
	require.NoError(t, err)
	return acc
}
