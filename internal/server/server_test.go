package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cartblanche/cartblanche-api/internal/config"
	"github.com/cartblanche/cartblanche-api/internal/ledger"
	"github.com/cartblanche/cartblanche-api/internal/logger"
	"github.com/cartblanche/cartblanche-api/internal/mandate"
	"github.com/cartblanche/cartblanche-api/internal/mocks"
	"github.com/cartblanche/cartblanche-api/internal/server"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitLogger()
}

const merchantAddr = "0xfe5e03799fe833d93e950d22406f9ad901ff3bb9"

func newTestServer(t *testing.T, mockLedger ledger.Client) *gin.Engine {
	t.Helper()

	senderKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	router, err := server.New(&config.Config{
		Port:             "0",
		SenderKey:        senderKey,
		InclusionTimeout: time.Second,
	}, mockLedger)
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

// Full purchase flow: confidential limit, signed offer, authorization with a
// known requester, settlement with a settled receipt.
func TestPurchaseFlow_EndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockClient(ctrl)
	router := newTestServer(t, mockLedger)

	// The requester encrypts a 500.00 USD spending limit; merchant-facing
	// stages only ever see the ciphertext.
	encryptResp := doJSON(t, router, http.MethodPost, "/api/v1/budget/encrypt", gin.H{
		"limit": gin.H{"amount": "500.00", "currency": "USD"},
	})
	require.Equal(t, http.StatusOK, encryptResp.Code)

	var encrypted map[string]interface{}
	require.NoError(t, json.Unmarshal(encryptResp.Body.Bytes(), &encrypted))
	assert.Equal(t, true, encrypted["encrypted"])
	assert.NotEmpty(t, encrypted["ciphertext"])

	// Back on the requester side, the limit round-trips exactly.
	decryptResp := doJSON(t, router, http.MethodPost, "/api/v1/budget/decrypt", gin.H{
		"encryptedLimit": encrypted,
	})
	require.Equal(t, http.StatusOK, decryptResp.Code)
	assert.JSONEq(t, `{"amount":"500.00","currency":"USD"}`, decryptResp.Body.String())

	// Merchant quotes 199.00 USD (micro-units); the requester signs the
	// canonical mandate with key R.
	requesterKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	requesterAddr := crypto.PubkeyToAddress(requesterKey.PublicKey)

	m := &mandate.CartMandate{
		Recipient: merchantAddr,
		Amount:    mandate.NewAmountFromInt64(199000000),
		Currency:  "USD",
		ChainID:   324705682,
	}
	digest, err := mandate.SigningHash(m)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, requesterKey)
	require.NoError(t, err)
	sig[64] += 27
	signature := hexutil.Encode(sig)

	authResp := doJSON(t, router, http.MethodPost, "/api/v1/payments/authorize", gin.H{
		"mandate":        m,
		"signature":      signature,
		"expectedSigner": requesterAddr.Hex(),
	})
	require.Equal(t, http.StatusOK, authResp.Code)

	var authorized struct {
		Signer string `json:"signer"`
	}
	require.NoError(t, json.Unmarshal(authResp.Body.Bytes(), &authorized))
	assert.Equal(t, mandate.CanonicalRecipient(requesterAddr.Hex()), authorized.Signer)

	// Settlement submits one transfer and waits for inclusion.
	mockLedger.EXPECT().PendingSequence(gomock.Any(), gomock.Any()).Return(uint64(12), nil)
	mockLedger.EXPECT().FeeRate(gomock.Any()).Return(big.NewInt(1000000000), nil)
	mockLedger.EXPECT().SubmitTransfer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rawTx []byte) (string, error) {
			tx := new(types.Transaction)
			require.NoError(t, tx.UnmarshalBinary(rawTx))
			return tx.Hash().Hex(), nil
		})
	mockLedger.EXPECT().WaitForInclusion(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, txID string, _ time.Duration) (*ledger.InclusionResult, error) {
			return &ledger.InclusionResult{TxID: txID, Included: true, Success: true, BlockNumber: 42}, nil
		})

	settleResp := doJSON(t, router, http.MethodPost, "/api/v1/payments/settle", gin.H{
		"mandate":        m,
		"signature":      signature,
		"expectedSigner": requesterAddr.Hex(),
		"idempotencyKey": "purchase-123",
	})
	require.Equal(t, http.StatusOK, settleResp.Code)

	var settled struct {
		Signer   string `json:"signer"`
		Receipts []struct {
			Status string `json:"status"`
			TxID   string `json:"txId"`
		} `json:"receipts"`
	}
	require.NoError(t, json.Unmarshal(settleResp.Body.Bytes(), &settled))
	require.Len(t, settled.Receipts, 1)
	assert.Equal(t, "settled", settled.Receipts[0].Status)
	assert.NotEmpty(t, settled.Receipts[0].TxID)

	// Re-settling the same purchase is refused outright.
	dupResp := doJSON(t, router, http.MethodPost, "/api/v1/payments/settle", gin.H{
		"mandate":        m,
		"signature":      signature,
		"expectedSigner": requesterAddr.Hex(),
		"idempotencyKey": "purchase-123",
	})
	assert.Equal(t, http.StatusConflict, dupResp.Code)
	assert.Contains(t, dupResp.Body.String(), "DuplicateSettlement")
}

func TestAuthorize_SignerMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newTestServer(t, mocks.NewMockClient(ctrl))

	signingKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	m := &mandate.CartMandate{
		Recipient: merchantAddr,
		Amount:    mandate.NewAmountFromInt64(1000),
		Currency:  "USDC",
		ChainID:   1,
	}
	digest, err := mandate.SigningHash(m)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, signingKey)
	require.NoError(t, err)
	sig[64] += 27

	resp := doJSON(t, router, http.MethodPost, "/api/v1/payments/authorize", gin.H{
		"mandate":        m,
		"signature":      hexutil.Encode(sig),
		"expectedSigner": crypto.PubkeyToAddress(otherKey.PublicKey).Hex(),
	})

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), "SignerMismatch")
}

func TestAuthorize_InvalidRequestBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newTestServer(t, mocks.NewMockClient(ctrl))

	resp := doJSON(t, router, http.MethodPost, "/api/v1/payments/authorize", gin.H{
		"signature": "0xabc",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSettle_AmountMismatchRejectedWholesale(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No ledger expectations: the tampered batch must produce zero
	// transfers.
	router := newTestServer(t, mocks.NewMockClient(ctrl))

	requesterKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	batch := &mandate.CartMandate{
		Recipient: merchantAddr,
		Amount:    mandate.NewAmountFromInt64(10),
		Currency:  "USDC",
		ChainID:   1,
		Merchants: []mandate.Offer{
			{Recipient: merchantAddr, Amount: mandate.NewAmountFromInt64(5)},
			{Recipient: "0x1111111111111111111111111111111111111111", Amount: mandate.NewAmountFromInt64(7)},
		},
	}
	digest, err := mandate.SigningHash(batch)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, requesterKey)
	require.NoError(t, err)
	sig[64] += 27

	resp := doJSON(t, router, http.MethodPost, "/api/v1/payments/settle", gin.H{
		"mandate":        batch,
		"signature":      hexutil.Encode(sig),
		"idempotencyKey": "purchase-456",
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "AmountMismatch")
}

func TestHealthEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newTestServer(t, mocks.NewMockClient(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}
