package confirm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// ErrTxFailed is returned for a mined transaction whose receipt status is 0.
var ErrTxFailed = errors.New("transaction failed")

// Backend is the subset of rpc.Client the waiter polls.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Config struct {
	// Interval between polls
	Interval time.Duration
	// Confirmations is the number of blocks, including the inclusion block,
	// that must exist before a receipt is final. 0 and 1 both mean "mined".
	Confirmations uint64
}

// Waiter blocks until transactions are mined and sufficiently confirmed.
// There is no timeout of its own; the caller's context bounds the wait.
type Waiter struct {
	backend Backend
	config  Config
}

func New(backend Backend, cfg Config) *Waiter {
	if cfg.Interval == 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}
	return &Waiter{backend: backend, config: cfg}
}

// Wait polls for the receipt of txHash. A reverted transaction returns its
// receipt together with ErrTxFailed.
func (w *Waiter) Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		receipt, err := w.poll(ctx, txHash)
		if err != nil || receipt != nil {
			return receipt, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll returns (nil, nil) while the transaction is pending or not yet confirmed.
func (w *Waiter) poll(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := w.backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Transient node failures are retried on the next tick
		log.Debug("Receipt lookup failed", "tx", txHash, "err", err)
		return nil, nil
	}

	if w.config.Confirmations > 1 {
		head, err := w.backend.BlockNumber(ctx)
		if err != nil {
			log.Debug("Block number lookup failed", "tx", txHash, "err", err)
			return nil, nil
		}
		if !confirmed(receipt.BlockNumber, head, w.config.Confirmations) {
			return nil, nil
		}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTxFailed, txHash.Hex())
	}
	return receipt, nil
}

func confirmed(included *big.Int, head, confirmations uint64) bool {
	if included == nil {
		return false
	}
	inc := included.Uint64()
	return head >= inc && head-inc+1 >= confirmations
}
