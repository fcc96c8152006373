package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/cartblanche/cartblanche-api/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// InclusionResult reports the outcome of waiting for a submitted transfer.
type InclusionResult struct {
	TxID        string `json:"txId"`
	Included    bool   `json:"included"`
	Success     bool   `json:"success"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// Client is the ledger boundary consumed by the settlement executor. The
// ledger is assumed to be consensus-bearing; this client only submits
// transactions and observes inclusion.
type Client interface {
	// PendingSequence returns the next sequence number (nonce) for the
	// account, including transactions still in the mempool.
	PendingSequence(ctx context.Context, account common.Address) (uint64, error)

	// SubmitTransfer broadcasts a signed transaction and returns its id.
	SubmitTransfer(ctx context.Context, rawTx []byte) (string, error)

	// WaitForInclusion blocks until the transaction is included or the
	// timeout elapses. An already-submitted transfer is not revocable;
	// a timeout only means the caller stops waiting.
	WaitForInclusion(ctx context.Context, txID string, timeout time.Duration) (*InclusionResult, error)

	// FeeRate returns the ledger's suggested fee per gas unit.
	FeeRate(ctx context.Context) (*big.Int, error)
}

const (
	receiptPollInterval = 2 * time.Second

	// RPC pacing; inclusion polling for a batch must not saturate the node.
	rpcRequestsPerSecond = 20
	rpcBurst             = 40
)

// EthClient implements Client over a JSON-RPC endpoint of an EVM-compatible
// ledger.
type EthClient struct {
	client  *ethclient.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewEthClient connects to the ledger's RPC endpoint
func NewEthClient(rpcURL string) (*EthClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to ledger RPC")
	}

	return &EthClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rpcRequestsPerSecond), rpcBurst),
		logger:  logger.Log,
	}, nil
}

// PendingSequence returns the account's next nonce including pending txs.
func (c *EthClient) PendingSequence(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	nonce, err := c.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get sequence number for %s", account.Hex())
	}
	return nonce, nil
}

// SubmitTransfer decodes and broadcasts a signed transaction.
func (c *EthClient) SubmitTransfer(ctx context.Context, rawTx []byte) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return "", errors.Wrap(err, "failed to decode signed transfer")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return "", errors.Wrap(err, "transfer submission rejected")
	}

	txID := tx.Hash().Hex()
	c.logger.Debug("Transfer submitted to ledger",
		zap.String("tx_id", txID),
		zap.Uint64("sequence", tx.Nonce()))
	return txID, nil
}

// WaitForInclusion polls for the transaction receipt until inclusion or the
// bounded timeout.
func (c *EthClient) WaitForInclusion(ctx context.Context, txID string, timeout time.Duration) (*InclusionResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hash := common.HexToHash(txID)
	var receipt *types.Receipt

	poll := func() error {
		if err := c.limiter.Wait(waitCtx); err != nil {
			return backoff.Permanent(err)
		}
		r, err := c.client.TransactionReceipt(waitCtx, hash)
		if err != nil {
			// Not yet mined; keep polling until the deadline.
			return err
		}
		receipt = r
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(receiptPollInterval), waitCtx)
	if err := backoff.Retry(poll, policy); err != nil {
		return nil, errors.Wrapf(err, "transfer %s not included within %s", txID, timeout)
	}

	return &InclusionResult{
		TxID:        txID,
		Included:    true,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// FeeRate returns the suggested gas price.
func (c *EthClient) FeeRate(ctx context.Context) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fee rate")
	}
	return price, nil
}

// Close closes the underlying RPC connection.
func (c *EthClient) Close() {
	c.client.Close()
}
