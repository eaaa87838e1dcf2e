package conn

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/84hero/ens-namer/pkg/confirm"
	"github.com/84hero/ens-namer/pkg/contracts"
	"github.com/84hero/ens-namer/pkg/decoder"
	"github.com/84hero/ens-namer/pkg/rpc"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

var (
	// ErrCallReverted covers reverts, empty return data and failed receipts.
	ErrCallReverted = errors.New("chain call reverted")
	ErrReadOnly     = errors.New("connection has no signing key")
)

// Gas estimates are padded by this percentage
const gasLimitBufferPercent = 20

// Config for a chain connection
type Config struct {
	// Name is the logical chain name, used in logs only
	Name string
	// Key signs transactions; nil makes the connection read-only
	Key *ecdsa.PrivateKey
	// Wallet overrides the caller address of a read-only connection
	Wallet  common.Address
	Confirm confirm.Config
}

// Connection is a read/write handle on a single chain for one wallet.
type Connection struct {
	name    string
	client  rpc.Client
	waiter  *confirm.Waiter
	decoder *decoder.ABIWrapper
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	mu sync.Mutex
	// minBlock is the block of the last confirmed write; reads and writes are
	// only served by nodes that have seen it.
	minBlock uint64
	// nextNonce guards against a node whose pending nonce trails our own writes
	nextNonce uint64
}

// New binds client to the wallet in cfg and resolves the chain id.
func New(ctx context.Context, client rpc.Client, cfg Config) (*Connection, error) {
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch chain id: %w", cfg.Name, err)
	}

	c := &Connection{
		name:    cfg.Name,
		client:  client,
		waiter:  confirm.New(client, cfg.Confirm),
		decoder: decoder.New(contracts.All()...),
		key:     cfg.Key,
		from:    cfg.Wallet,
		chainID: id,
	}
	if cfg.Key != nil {
		c.from = crypto.PubkeyToAddress(cfg.Key.PublicKey)
	}
	return c, nil
}

// Name returns the logical chain name
func (c *Connection) Name() string {
	return c.name
}

// Wallet returns the address that signs writes and is used as caller for reads
func (c *Connection) Wallet() common.Address {
	return c.from
}

// ChainID returns the id reported by the node
func (c *Connection) ChainID() uint64 {
	return c.chainID.Uint64()
}

// CodeAt returns the code deployed at addr; empty for accounts without code.
func (c *Connection) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := c.client.CodeAt(rpc.WithMinBlock(ctx, c.floor()), addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: code at %s: %w", c.name, addr.Hex(), err)
	}
	return code, nil
}

// Call runs a read-only contract call and returns the unpacked outputs.
// A revert, an empty result (no code or no such function) or an undecodable
// result is reported as ErrCallReverted; anything else is a connection failure.
func (c *Connection) Call(ctx context.Context, to common.Address, table *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := table.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx = rpc.WithMinBlock(ctx, c.floor())
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data}, nil)
	if err != nil {
		if rpc.IsRevert(err) {
			return nil, fmt.Errorf("%w: %s on %s: %v", ErrCallReverted, method, to.Hex(), err)
		}
		return nil, fmt.Errorf("%s: call %s on %s: %w", c.name, method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s on %s returned no data", ErrCallReverted, method, to.Hex())
	}

	values, err := table.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", ErrCallReverted, method, to.Hex(), err)
	}
	return values, nil
}

// Transact signs and submits a contract call, then blocks until the
// transaction is confirmed.
func (c *Connection) Transact(ctx context.Context, to common.Address, table *abi.ABI, method string, args ...interface{}) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrReadOnly
	}

	data, err := table.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx = rpc.WithMinBlock(ctx, c.floor())
	tx, err := c.buildTx(ctx, to, data)
	if err != nil {
		if rpc.IsRevert(err) {
			return common.Hash{}, fmt.Errorf("%w: %s on %s: %v", ErrCallReverted, method, to.Hex(), err)
		}
		return common.Hash{}, fmt.Errorf("%s: build %s: %w", c.name, method, err)
	}

	signed, err := c.sign(tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", method, err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("%s: send %s: %w", c.name, method, err)
	}
	log.Debug("Transaction submitted", "chain", c.name, "method", method, "tx", signed.Hash())
	c.sent(signed.Nonce())

	receipt, err := c.waiter.Wait(ctx, signed.Hash())
	if receipt != nil && receipt.BlockNumber != nil {
		c.confirmed(receipt.BlockNumber.Uint64())
	}
	if err != nil {
		if errors.Is(err, confirm.ErrTxFailed) {
			return signed.Hash(), fmt.Errorf("%w: %s on %s: %v", ErrCallReverted, method, to.Hex(), err)
		}
		return signed.Hash(), fmt.Errorf("%s: wait %s: %w", c.name, method, err)
	}

	for _, ev := range c.decoder.DecodeReceipt(receipt) {
		log.Debug("Receipt event", "chain", c.name, "tx", signed.Hash(), "event", ev.Name)
	}
	return signed.Hash(), nil
}

func (c *Connection) buildTx(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if nonce < c.nextNonce {
		nonce = c.nextNonce
	}
	c.mu.Unlock()

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data})
	if err != nil {
		return nil, err
	}
	gas += gas * gasLimitBufferPercent / 100

	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	// Pre-London chains have no base fee
	if head.BaseFee == nil {
		price, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Gas:      gas,
			GasPrice: price,
			Data:     data,
		}), nil
	}

	tip, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
	}), nil
}

func (c *Connection) sign(tx *types.Transaction) (*types.Transaction, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	return opts.Signer(c.from, tx)
}

func (c *Connection) floor() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minBlock
}

func (c *Connection) sent(nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nonce+1 > c.nextNonce {
		c.nextNonce = nonce + 1
	}
}

func (c *Connection) confirmed(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if block > c.minBlock {
		c.minBlock = block
	}
}
