package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cartblanche/cartblanche-api/internal/authorizer"
	"github.com/cartblanche/cartblanche-api/internal/ledger"
	"github.com/cartblanche/cartblanche-api/internal/logger"
	"github.com/cartblanche/cartblanche-api/internal/mandate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrAmountMismatch is returned when a batch's declared aggregate amount
	// does not equal the sum of its line items. The signature covers the
	// aggregate, so paying a different total would exceed what was
	// authorized; the whole batch is rejected before any transfer.
	ErrAmountMismatch = fmt.Errorf("aggregate amount does not match line items")

	// ErrMissingIdempotencyKey is returned when Settle is called without a
	// caller-supplied idempotency key.
	ErrMissingIdempotencyKey = fmt.Errorf("idempotency key is required")

	// ErrDuplicateSettlement is returned when an idempotency key has
	// already been consumed. Re-submitting the same authorized mandate
	// would pay every recipient twice.
	ErrDuplicateSettlement = fmt.Errorf("settlement already executed for this idempotency key")
)

// Receipt statuses and structured failure reasons.
const (
	StatusSettled = "settled"
	StatusFailed  = "failed"

	ReasonInvalidRecipient = "InvalidRecipient"
)

// Receipt records the outcome of one line item of a settlement. Receipts are
// immutable once returned; exactly one is produced per line item per attempt.
type Receipt struct {
	ID             string    `json:"id"`
	Recipient      string    `json:"recipient"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	TxID           string    `json:"txId,omitempty"`
	SequenceNumber *uint64   `json:"sequenceNumber,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// Config contains parameters for the settlement executor
type Config struct {
	// SenderKey signs outgoing transfers. This is the system's custodial
	// account, distinct from the requester identity that signs mandates.
	SenderKey *ecdsa.PrivateKey

	// TokenAddress, when set, pays line items as ERC-20 transfers of this
	// token instead of native-value transfers.
	TokenAddress *common.Address

	// InclusionTimeout bounds how long each transfer waits for inclusion.
	InclusionTimeout time.Duration
}

const (
	defaultInclusionTimeout = 90 * time.Second

	nativeTransferGasLimit = 21000
	tokenTransferGasLimit  = 100000
)

// erc20TransferSelector is the 4-byte method id of transfer(address,uint256).
var erc20TransferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// Executor submits one transfer per mandate line item to the ledger and
// aggregates a receipt per item. Transfers from the one sender account are
// strictly serialized: sequence numbers are fetched fresh per transfer and
// never allocated ahead of confirmation.
type Executor struct {
	ledger           ledger.Client
	senderKey        *ecdsa.PrivateKey
	sender           common.Address
	tokenAddress     *common.Address
	inclusionTimeout time.Duration
	logger           *zap.Logger

	mu          sync.Mutex
	senderLocks map[common.Address]*sync.Mutex
	usedKeys    map[string]struct{}
}

// NewExecutor creates a settlement executor for one sender account
func NewExecutor(ledgerClient ledger.Client, config Config) (*Executor, error) {
	if ledgerClient == nil {
		return nil, fmt.Errorf("ledger client is required")
	}
	if config.SenderKey == nil {
		return nil, fmt.Errorf("sender key is required")
	}

	timeout := config.InclusionTimeout
	if timeout <= 0 {
		timeout = defaultInclusionTimeout
	}

	return &Executor{
		ledger:           ledgerClient,
		senderKey:        config.SenderKey,
		sender:           crypto.PubkeyToAddress(config.SenderKey.PublicKey),
		tokenAddress:     config.TokenAddress,
		inclusionTimeout: timeout,
		logger:           logger.Log,
		senderLocks:      make(map[common.Address]*sync.Mutex),
		usedKeys:         make(map[string]struct{}),
	}, nil
}

// Sender returns the custodial account transfers are paid from.
func (e *Executor) Sender() common.Address {
	return e.sender
}

// Settle executes all transfers of an authorized mandate in listed order and
// returns one receipt per line item. A single item's failure does not abort
// its siblings: once the mandate is authorized, later recipients are
// causally independent of earlier ones.
//
// Settle is at-most-once per idempotency key. The key is consumed before the
// first transfer is built; a duplicate call fails with
// ErrDuplicateSettlement and submits nothing. Nothing here retries: a
// submission error or timeout is reported as-is in the receipt, and
// re-attempting with a fresh sequence number is never assumed safe (risk of
// double payment).
func (e *Executor) Settle(ctx context.Context, authorized *authorizer.AuthorizedMandate, idempotencyKey string) ([]Receipt, error) {
	if authorized == nil || authorized.Mandate == nil {
		return nil, fmt.Errorf("authorized mandate is required")
	}
	m := authorized.Mandate
	if m.ChainID == 0 {
		return nil, mandate.ErrUnsupportedChain
	}

	items := m.LineItems()
	if err := checkAggregate(m, items); err != nil {
		return nil, err
	}

	if err := e.claimIdempotencyKey(idempotencyKey); err != nil {
		return nil, err
	}

	// Sequence numbers are a per-sender resource; concurrent settlements
	// for the same sender must not race on them.
	senderLock := e.lockForSender(e.sender)
	senderLock.Lock()
	defer senderLock.Unlock()

	e.logger.Info("Starting settlement",
		zap.String("sender", e.sender.Hex()),
		zap.String("signer", authorized.Signer),
		zap.Int64("chain_id", m.ChainID),
		zap.Int("line_items", len(items)),
		zap.String("idempotency_key", idempotencyKey))

	receipts := make([]Receipt, 0, len(items))
	for i, item := range items {
		receipt := e.settleLineItem(ctx, m.ChainID, item)
		receipts = append(receipts, receipt)

		if receipt.Status == StatusSettled {
			e.logger.Info("Line item settled",
				zap.Int("index", i),
				zap.String("recipient", receipt.Recipient),
				zap.String("amount", receipt.Amount),
				zap.String("tx_id", receipt.TxID))
		} else {
			e.logger.Warn("Line item failed",
				zap.Int("index", i),
				zap.String("recipient", receipt.Recipient),
				zap.String("amount", receipt.Amount),
				zap.String("reason", receipt.Reason))
		}
	}

	return receipts, nil
}

func (e *Executor) settleLineItem(ctx context.Context, chainID int64, item mandate.Offer) Receipt {
	receipt := Receipt{
		ID:          uuid.NewString(),
		Recipient:   item.Recipient,
		Amount:      item.Amount.String(),
		Currency:    item.Currency,
		SubmittedAt: time.Now().UTC(),
	}

	// A malformed line item fails on its own; sibling items are causally
	// independent and still settle.
	if !common.IsHexAddress(item.Recipient) {
		return failed(receipt, ReasonInvalidRecipient)
	}
	if !item.Amount.IsSet() || item.Amount.BigInt().Sign() < 0 {
		return failed(receipt, "invalid amount")
	}
	recipient := common.HexToAddress(item.Recipient)

	// Fresh sequence number per transfer, never reused and never batched
	// ahead of confirmation.
	sequence, err := e.ledger.PendingSequence(ctx, e.sender)
	if err != nil {
		return failed(receipt, fmt.Sprintf("sequence number unavailable: %v", err))
	}
	receipt.SequenceNumber = &sequence

	feeRate, err := e.ledger.FeeRate(ctx)
	if err != nil {
		return failed(receipt, fmt.Sprintf("fee rate unavailable: %v", err))
	}

	rawTx, err := e.buildSignedTransfer(chainID, sequence, feeRate, recipient, item.Amount.BigInt())
	if err != nil {
		return failed(receipt, fmt.Sprintf("failed to build transfer: %v", err))
	}

	txID, err := e.ledger.SubmitTransfer(ctx, rawTx)
	if err != nil {
		return failed(receipt, fmt.Sprintf("submission rejected: %v", err))
	}
	receipt.TxID = txID

	result, err := e.ledger.WaitForInclusion(ctx, txID, e.inclusionTimeout)
	if err != nil {
		// The transfer is not revocable; it may still be included later.
		// We only stop waiting and report the failure.
		return failed(receipt, fmt.Sprintf("inclusion not confirmed: %v", err))
	}
	if !result.Success {
		return failed(receipt, "transfer reverted on chain")
	}

	receipt.Status = StatusSettled
	return receipt
}

func (e *Executor) buildSignedTransfer(chainID int64, sequence uint64, feeRate *big.Int, recipient common.Address, amount *big.Int) ([]byte, error) {
	var tx *types.Transaction
	if e.tokenAddress != nil {
		data := make([]byte, 0, 4+32+32)
		data = append(data, erc20TransferSelector...)
		data = append(data, common.LeftPadBytes(recipient.Bytes(), 32)...)
		data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)

		tx = types.NewTx(&types.LegacyTx{
			Nonce:    sequence,
			To:       e.tokenAddress,
			Value:    big.NewInt(0),
			Gas:      tokenTransferGasLimit,
			GasPrice: feeRate,
			Data:     data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    sequence,
			To:       &recipient,
			Value:    amount,
			Gas:      nativeTransferGasLimit,
			GasPrice: feeRate,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chainID)), e.senderKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transfer: %w", err)
	}
	return signed.MarshalBinary()
}

// checkAggregate enforces that a batch's declared total equals the sum of
// its line items before anything is submitted.
func checkAggregate(m *mandate.CartMandate, items []mandate.Offer) error {
	if !m.IsBatch() {
		return nil
	}

	sum := new(big.Int)
	for _, item := range items {
		sum.Add(sum, item.Amount.BigInt())
	}
	if sum.Cmp(m.Amount.BigInt()) != 0 {
		return fmt.Errorf("%w: declared %s, line items sum to %s", ErrAmountMismatch, m.Amount, sum)
	}
	return nil
}

func (e *Executor) claimIdempotencyKey(key string) error {
	if key == "" {
		return ErrMissingIdempotencyKey
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, used := e.usedKeys[key]; used {
		return ErrDuplicateSettlement
	}
	e.usedKeys[key] = struct{}{}
	return nil
}

func (e *Executor) lockForSender(sender common.Address) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.senderLocks[sender]
	if !ok {
		lock = &sync.Mutex{}
		e.senderLocks[sender] = lock
	}
	return lock
}

func failed(receipt Receipt, reason string) Receipt {
	receipt.Status = StatusFailed
	receipt.Reason = reason
	return receipt
}
