package mandate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrMalformedOffer is returned when an offer's recipient is not an
	// address-shaped string or its amount is negative or non-integer.
	ErrMalformedOffer = fmt.Errorf("malformed offer")

	// ErrUnsupportedChain is returned when a mandate carries no chain id.
	ErrUnsupportedChain = fmt.Errorf("unsupported chain")
)

// Amount is a non-negative integer amount expressed in the smallest
// indivisible unit of the currency (e.g. USDC micro-units). It accepts both
// JSON numbers and integer strings on the wire.
type Amount struct {
	value *big.Int
}

// NewAmount creates an amount from a big integer
func NewAmount(v *big.Int) Amount {
	return Amount{value: new(big.Int).Set(v)}
}

// NewAmountFromInt64 creates an amount from an int64
func NewAmountFromInt64(v int64) Amount {
	return Amount{value: big.NewInt(v)}
}

// BigInt returns a copy of the underlying integer, zero if unset.
func (a Amount) BigInt() *big.Int {
	if a.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.value)
}

// IsSet reports whether the amount was provided.
func (a Amount) IsSet() bool {
	return a.value != nil
}

func (a Amount) String() string {
	return a.BigInt().String()
}

// UnmarshalJSON accepts an integer number or an integer string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("%w: amount %q is not an integer", ErrMalformedOffer, s)
	}
	a.value = v
	return nil
}

// MarshalJSON renders the amount as an integer string to avoid precision
// loss in JSON consumers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Offer is a proposed purchase: a recipient chain address, an amount in the
// smallest currency unit, a currency code, and an optional human label.
type Offer struct {
	Recipient string `json:"recipient"`
	Amount    Amount `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Label     string `json:"label,omitempty"`
}

// CartMandate is the canonical, typed representation of one offer or one
// named batch of offers, bound to a chain identifier. For a batch, the
// top-level recipient/amount/currency are the aggregate fields committed to
// by the signature, and Merchants carries the per-item split.
type CartMandate struct {
	Recipient string  `json:"recipient"`
	Amount    Amount  `json:"amount"`
	Currency  string  `json:"currency"`
	ChainID   int64   `json:"chainId"`
	Label     string  `json:"label,omitempty"`
	Merchants []Offer `json:"merchants,omitempty"`
}

// IsBatch reports whether the mandate carries a line-item split.
func (m *CartMandate) IsBatch() bool {
	return len(m.Merchants) > 0
}

// LineItems returns the transfers the mandate pays out: the merchants list
// for a batch, or a single item built from the top-level fields.
func (m *CartMandate) LineItems() []Offer {
	if m.IsBatch() {
		items := make([]Offer, len(m.Merchants))
		for i, item := range m.Merchants {
			items[i] = item
			if items[i].Currency == "" {
				items[i].Currency = m.Currency
			}
		}
		return items
	}
	return []Offer{{
		Recipient: m.Recipient,
		Amount:    m.Amount,
		Currency:  m.Currency,
		Label:     m.Label,
	}}
}

// Validate checks the mandate against the canonical schema: address-shaped
// recipients, non-negative integer amounts, a currency code, and a chain id.
func (m *CartMandate) Validate() error {
	if m.ChainID == 0 {
		return fmt.Errorf("%w: chain id is required", ErrUnsupportedChain)
	}
	if err := validateOfferFields(m.Recipient, m.Amount, m.Currency); err != nil {
		return err
	}
	for i, item := range m.Merchants {
		currency := item.Currency
		if currency == "" {
			currency = m.Currency
		}
		if err := validateOfferFields(item.Recipient, item.Amount, currency); err != nil {
			return fmt.Errorf("merchants[%d]: %w", i, err)
		}
	}
	return nil
}

func validateOfferFields(recipient string, amount Amount, currency string) error {
	if !common.IsHexAddress(recipient) {
		return fmt.Errorf("%w: recipient %q is not a chain address", ErrMalformedOffer, recipient)
	}
	if !amount.IsSet() {
		return fmt.Errorf("%w: amount is required", ErrMalformedOffer)
	}
	if amount.BigInt().Sign() < 0 {
		return fmt.Errorf("%w: amount %s is negative", ErrMalformedOffer, amount)
	}
	if currency == "" {
		return fmt.Errorf("%w: currency is required", ErrMalformedOffer)
	}
	return nil
}

// CanonicalRecipient returns the recipient in the schema's lowercase hex form.
func CanonicalRecipient(recipient string) string {
	return strings.ToLower(common.HexToAddress(recipient).Hex())
}
