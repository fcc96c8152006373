package authorizer_test

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/cartblanche/cartblanche-api/internal/authorizer"
	"github.com/cartblanche/cartblanche-api/internal/logger"
	"github.com/cartblanche/cartblanche-api/internal/mandate"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger()
}

const merchantAddr = "0xfe5e03799fe833d93e950d22406f9ad901ff3bb9"

func testMandate() *mandate.CartMandate {
	return &mandate.CartMandate{
		Recipient: merchantAddr,
		Amount:    mandate.NewAmountFromInt64(199000000),
		Currency:  "USDC",
		ChainID:   324705682,
	}
}

// signMandate produces a wallet-style signature (V as 27/28) over the
// mandate's canonical encoding.
func signMandate(t *testing.T, m *mandate.CartMandate, key *ecdsa.PrivateKey) string {
	t.Helper()
	digest, err := mandate.SigningHash(m)
	require.NoError(t, err)

	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

func TestAuthorizer_Verify_AcceptsValidSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)

	m := testMandate()
	signature := signMandate(t, m, key)

	authorized, err := authorizer.NewAuthorizer().Verify(m, signature, signerAddr.Hex())
	require.NoError(t, err)

	assert.Equal(t, strings.ToLower(signerAddr.Hex()), authorized.Signer)
	assert.Equal(t, signature, authorized.Signature)
	assert.Same(t, m, authorized.Mandate)
}

func TestAuthorizer_Verify_ExpectedSignerCaseInsensitive(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	m := testMandate()
	signature := signMandate(t, m, key)

	expected := strings.ToUpper(strings.TrimPrefix(crypto.PubkeyToAddress(key.PublicKey).Hex(), "0x"))
	_, err = authorizer.NewAuthorizer().Verify(m, signature, "0x"+expected)
	assert.NoError(t, err)
}

func TestAuthorizer_Verify_TrustOnFirstSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)

	m := testMandate()
	signature := signMandate(t, m, key)

	// No expected signer: the recovered identity is accepted as the
	// authenticated requester.
	authorized, err := authorizer.NewAuthorizer().Verify(m, signature, "")
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(signerAddr.Hex()), authorized.Signer)
}

func TestAuthorizer_Verify_RejectsTamperedMandate(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)

	signature := signMandate(t, testMandate(), key)

	tests := []struct {
		name   string
		mutate func(*mandate.CartMandate)
	}{
		{"amount changed by one unit", func(m *mandate.CartMandate) { m.Amount = mandate.NewAmountFromInt64(199000001) }},
		{"recipient changed", func(m *mandate.CartMandate) { m.Recipient = "0x1111111111111111111111111111111111111111" }},
		{"currency changed", func(m *mandate.CartMandate) { m.Currency = "USDT" }},
		{"chain id changed", func(m *mandate.CartMandate) { m.ChainID = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMandate()
			tt.mutate(m)

			// The signature recovers to some address over the altered
			// digest, but never the requester's.
			_, err := authorizer.NewAuthorizer().Verify(m, signature, signerAddr.Hex())
			assert.ErrorIs(t, err, authorizer.ErrSignerMismatch)
		})
	}
}

func TestAuthorizer_Verify_RejectsDifferentKey(t *testing.T) {
	requesterKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	m := testMandate()
	signature := signMandate(t, m, otherKey)

	expected := crypto.PubkeyToAddress(requesterKey.PublicKey).Hex()
	_, err = authorizer.NewAuthorizer().Verify(m, signature, expected)
	assert.ErrorIs(t, err, authorizer.ErrSignerMismatch)
}

func TestAuthorizer_Verify_RejectsBatchSplitAlteredAfterSigning(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)

	batch := &mandate.CartMandate{
		Recipient: merchantAddr,
		Amount:    mandate.NewAmountFromInt64(250),
		Currency:  "USDC",
		ChainID:   324705682,
		Merchants: []mandate.Offer{
			{Recipient: merchantAddr, Amount: mandate.NewAmountFromInt64(50)},
			{Recipient: "0x1111111111111111111111111111111111111111", Amount: mandate.NewAmountFromInt64(200)},
		},
	}
	signature := signMandate(t, batch, key)

	// Redirect funds within the same aggregate after signing.
	batch.Merchants[0].Amount = mandate.NewAmountFromInt64(200)
	batch.Merchants[1].Amount = mandate.NewAmountFromInt64(50)

	_, err = authorizer.NewAuthorizer().Verify(batch, signature, signerAddr.Hex())
	assert.ErrorIs(t, err, authorizer.ErrSignerMismatch)
}

func TestAuthorizer_Verify_InvalidSignatureEncoding(t *testing.T) {
	m := testMandate()

	tests := []struct {
		name      string
		signature string
	}{
		{"not hex", "not-a-signature"},
		{"missing 0x prefix", strings.Repeat("ab", 65)},
		{"too short", "0x" + strings.Repeat("ab", 64)},
		{"too long", "0x" + strings.Repeat("ab", 66)},
		{"invalid recovery id", "0x" + strings.Repeat("ab", 64) + "05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authorizer.NewAuthorizer().Verify(m, tt.signature, "")
			assert.ErrorIs(t, err, authorizer.ErrInvalidSignatureEncoding)
		})
	}
}

func TestAuthorizer_Verify_PropagatesMandateErrors(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	m := testMandate()
	signature := signMandate(t, m, key)

	m.ChainID = 0
	_, err = authorizer.NewAuthorizer().Verify(m, signature, "")
	assert.ErrorIs(t, err, mandate.ErrUnsupportedChain)
}
