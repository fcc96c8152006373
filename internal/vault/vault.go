package vault

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cartblanche/cartblanche-api/internal/logger"
	"go.uber.org/zap"
)

// ErrInvalidCiphertext is returned when a ciphertext was not produced by a
// matching Encrypt call (malformed or tampered wrapper).
var ErrInvalidCiphertext = fmt.Errorf("invalid ciphertext")

// Cipher is the confidentiality primitive consumed by the vault. Any
// implementation providing this pair is acceptable; the vault assumes no
// other contract.
type Cipher interface {
	Encrypt(plaintext []byte) (*EncryptedLimit, error)
	Decrypt(ciphertext *EncryptedLimit) ([]byte, error)
}

// SpendingLimit is a non-negative decimal amount in a stated currency. It is
// never transmitted in plaintext to any merchant-facing component.
type SpendingLimit struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// EncryptedLimit is an opaque ciphertext plus a marker that it is ciphertext.
type EncryptedLimit struct {
	Encrypted  bool   `json:"encrypted"`
	Ciphertext string `json:"ciphertext"`
	Scheme     string `json:"scheme,omitempty"`
}

var decimalAmountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,6})?$`)

// Validate checks that the limit is a well-formed non-negative decimal with
// an uppercase currency code.
func (l SpendingLimit) Validate() error {
	if !decimalAmountPattern.MatchString(l.Amount) {
		return fmt.Errorf("invalid limit amount %q: must be a non-negative decimal", l.Amount)
	}
	if l.Currency == "" || l.Currency != strings.ToUpper(l.Currency) {
		return fmt.Errorf("invalid limit currency %q: must be an uppercase code", l.Currency)
	}
	return nil
}

// BudgetVault encrypts and decrypts a requester's spending limit under an
// injected confidentiality primitive. It is a pure transform invoked at most
// once per purchase flow on each side; it holds no state and never caches.
type BudgetVault struct {
	cipher Cipher
	logger *zap.Logger
}

// NewBudgetVault creates a new budget vault
func NewBudgetVault(cipher Cipher) *BudgetVault {
	return &BudgetVault{
		cipher: cipher,
		logger: logger.Log,
	}
}

// EncryptLimit encrypts a spending limit. The returned ciphertext is safe to
// hand to merchant-facing components; the plaintext amount never leaves the
// requester side.
func (v *BudgetVault) EncryptLimit(limit SpendingLimit) (*EncryptedLimit, error) {
	if err := limit.Validate(); err != nil {
		return nil, err
	}

	encrypted, err := v.cipher.Encrypt([]byte(limit.Amount + " " + limit.Currency))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt spending limit: %w", err)
	}

	v.logger.Info("Spending limit encrypted",
		zap.String("currency", limit.Currency),
		zap.String("scheme", encrypted.Scheme))

	return encrypted, nil
}

// DecryptLimit recovers a spending limit from its ciphertext. Only the
// component validating a mandate on the requester's behalf may call this.
func (v *BudgetVault) DecryptLimit(ciphertext *EncryptedLimit) (SpendingLimit, error) {
	if ciphertext == nil || !ciphertext.Encrypted {
		return SpendingLimit{}, fmt.Errorf("%w: missing encryption marker", ErrInvalidCiphertext)
	}

	plaintext, err := v.cipher.Decrypt(ciphertext)
	if err != nil {
		return SpendingLimit{}, err
	}

	amount, currency, found := strings.Cut(string(plaintext), " ")
	if !found {
		return SpendingLimit{}, fmt.Errorf("%w: malformed plaintext payload", ErrInvalidCiphertext)
	}

	limit := SpendingLimit{Amount: amount, Currency: currency}
	if err := limit.Validate(); err != nil {
		return SpendingLimit{}, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	return limit, nil
}
