package mandate

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP-712 signing domain shared with the requester's wallet. Both sides must
// produce bit-identical typed data or signatures will not verify.
const (
	DomainName    = "CartBlanche"
	DomainVersion = "1"

	singleMandateType = "CartMandate"
	batchMandateType  = "BatchCartMandate"

	zeroVerifyingContract = "0x0000000000000000000000000000000000000000"
)

// TypedData builds the canonical EIP-712 typed data for a mandate. A single
// offer signs the CartMandate type; a batch signs BatchCartMandate, which
// additionally commits to the full line-item list through merchantsHash so
// the split cannot be altered after signing without invalidating the
// signature.
func TypedData(m *CartMandate) (*apitypes.TypedData, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	primaryType := singleMandateType
	message := apitypes.TypedDataMessage{
		"merchant_address": CanonicalRecipient(m.Recipient),
		"amount":           m.Amount.String(),
		"currency":         m.Currency,
	}
	mandateFields := []apitypes.Type{
		{Name: "merchant_address", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "currency", Type: "string"},
	}

	if m.IsBatch() {
		primaryType = batchMandateType
		commitment := MerchantsCommitment(m.LineItems())
		message["merchantsHash"] = hexutil.Encode(commitment[:])
		mandateFields = append(mandateFields, apitypes.Type{Name: "merchantsHash", Type: "bytes32"})
	}

	return &apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			primaryType: mandateFields,
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           math.NewHexOrDecimal256(m.ChainID),
			VerifyingContract: zeroVerifyingContract,
		},
		Message: message,
	}, nil
}

// SigningHash returns the 32-byte digest the requester's wallet signs:
// keccak256(0x1901 || domainSeparator || hashStruct(mandate)). It is
// recomputed from the mandate fields on every call; caller-supplied
// encodings are never trusted.
func SigningHash(m *CartMandate) ([]byte, error) {
	typedData, err := TypedData(m)
	if err != nil {
		return nil, err
	}

	hash, _, err := apitypes.TypedDataAndHash(*typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hash, nil
}

// MerchantsCommitment hashes the line-item list into a single digest:
// keccak256 over the concatenation of keccak256(recipient || amount_be32 ||
// currency) per item, in listed order. Item order is significant; the
// settlement executor pays in the same order.
func MerchantsCommitment(items []Offer) common.Hash {
	var buf []byte
	for _, item := range items {
		amount := make([]byte, 32)
		item.Amount.BigInt().FillBytes(amount)

		entry := crypto.Keccak256(
			common.HexToAddress(item.Recipient).Bytes(),
			amount,
			[]byte(item.Currency),
		)
		buf = append(buf, entry...)
	}
	return crypto.Keccak256Hash(buf)
}
