package authorizer

import (
	"fmt"
	"strings"

	"github.com/cartblanche/cartblanche-api/internal/logger"
	"github.com/cartblanche/cartblanche-api/internal/mandate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	// ErrInvalidSignatureEncoding is returned for malformed signature bytes.
	ErrInvalidSignatureEncoding = fmt.Errorf("invalid signature encoding")

	// ErrRecoveryFailed is returned when the signature is cryptographically
	// invalid for the mandate's canonical encoding.
	ErrRecoveryFailed = fmt.Errorf("signer recovery failed")

	// ErrSignerMismatch is returned when the recovered signer differs from
	// the expected requester identity.
	ErrSignerMismatch = fmt.Errorf("signer mismatch")
)

// AuthorizedMandate is a mandate plus the signature that authorizes it and
// the signer identity recovered during verification. It is constructed only
// by Verify and consumed once by the settlement executor.
type AuthorizedMandate struct {
	Mandate   *mandate.CartMandate `json:"mandate"`
	Signature string               `json:"signature"`
	Signer    string               `json:"signer"`
}

// Authorizer verifies requester signatures over canonical mandate encodings.
// It is a pure computation with no shared state and is safe to call
// concurrently on independent inputs.
type Authorizer struct {
	logger *zap.Logger
}

// NewAuthorizer creates a new signature authorizer
func NewAuthorizer() *Authorizer {
	return &Authorizer{
		logger: logger.Log,
	}
}

// Verify recomputes the mandate's canonical signing hash, recovers the
// signer from the secp256k1 signature, and matches it against
// expectedSigner when provided. An empty expectedSigner accepts whichever
// identity the signature recovers to (trust-on-first-signature); callers
// that know the requester's address must pass it.
//
// All failures are terminal: a signature is either valid for the canonical
// bytes or it is not, so retrying cannot change the outcome.
func (a *Authorizer) Verify(m *mandate.CartMandate, signature, expectedSigner string) (*AuthorizedMandate, error) {
	digest, err := mandate.SigningHash(m)
	if err != nil {
		return nil, err
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignatureEncoding, crypto.SignatureLength, len(sig))
	}

	// Wallets emit V as 27/28; go-ethereum recovery expects 0/1.
	recoverSig := make([]byte, crypto.SignatureLength)
	copy(recoverSig, sig)
	if recoverSig[64] >= 27 {
		recoverSig[64] -= 27
	}
	if recoverSig[64] > 1 {
		return nil, fmt.Errorf("%w: invalid recovery id %d", ErrInvalidSignatureEncoding, sig[64])
	}

	pubKey, err := crypto.SigToPub(digest, recoverSig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	recovered := crypto.PubkeyToAddress(*pubKey)

	if expectedSigner != "" {
		if !common.IsHexAddress(expectedSigner) {
			return nil, fmt.Errorf("%w: expected signer %q is not a chain address", ErrSignerMismatch, expectedSigner)
		}
		expected := common.HexToAddress(expectedSigner)
		if recovered != expected {
			a.logger.Warn("Mandate signature from unexpected signer",
				zap.String("expected_signer", expected.Hex()),
				zap.String("recovered_signer", recovered.Hex()),
				zap.Int64("chain_id", m.ChainID))
			return nil, fmt.Errorf("%w: recovered %s, expected %s", ErrSignerMismatch, recovered.Hex(), expected.Hex())
		}
	}

	a.logger.Info("Mandate authorized",
		zap.String("signer", recovered.Hex()),
		zap.String("amount", m.Amount.String()),
		zap.String("currency", m.Currency),
		zap.Int64("chain_id", m.ChainID),
		zap.Bool("batch", m.IsBatch()))

	return &AuthorizedMandate{
		Mandate:   m,
		Signature: signature,
		Signer:    strings.ToLower(recovered.Hex()),
	}, nil
}
