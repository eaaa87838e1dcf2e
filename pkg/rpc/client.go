package rpc

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

const syncInterval = 5 * time.Second

type minBlockKey struct{}

// WithMinBlock marks ctx so that requests made with it are only served by
// nodes that have seen block h. Callers set it after a write confirms, so the
// next read observes that write.
func WithMinBlock(ctx context.Context, h uint64) context.Context {
	if h == 0 {
		return ctx
	}
	return context.WithValue(ctx, minBlockKey{}, h)
}

// MinBlock returns the floor set by WithMinBlock, or 0.
func MinBlock(ctx context.Context) uint64 {
	h, _ := ctx.Value(minBlockKey{}).(uint64)
	return h
}

// MultiClient manages multiple RPC nodes, providing load balancing and failover
type MultiClient struct {
	nodes        []*Node
	globalHeight uint64

	mu sync.RWMutex
}

// NewClient initializes a multi-node client
func NewClient(ctx context.Context, configs []NodeConfig) (*MultiClient, error) {
	if len(configs) == 0 {
		return nil, errors.New("no rpc configs provided")
	}

	nodes := make([]*Node, 0, len(configs))
	for _, cfg := range configs {
		n, err := NewNode(ctx, cfg)
		if err != nil {
			// A single unreachable node is tolerated as long as one connects
			log.Warn("Failed to dial rpc node", "url", cfg.URL, "err", err)
			continue
		}
		nodes = append(nodes, n)
	}

	return NewClientWithNodes(ctx, nodes)
}

// NewClientWithNodes initializes MultiClient with existing nodes (for testing or advanced usage)
func NewClientWithNodes(ctx context.Context, nodes []*Node) (*MultiClient, error) {
	if len(nodes) == 0 {
		return nil, errors.New("failed to connect to any rpc node")
	}

	mc := &MultiClient{
		nodes: nodes,
	}

	// Keep node heights fresh in the background
	go mc.startBackgroundSync(ctx)

	return mc, nil
}

// Nodes returns the managed nodes
func (mc *MultiClient) Nodes() []*Node {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make([]*Node, len(mc.nodes))
	copy(out, mc.nodes)
	return out
}

// startBackgroundSync periodically polls all nodes to update their heights and scores
func (mc *MultiClient) startBackgroundSync(ctx context.Context) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	mc.syncNodes(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.syncNodes(ctx)
		}
	}
}

func (mc *MultiClient) syncNodes(ctx context.Context) {
	var maxH uint64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, n := range mc.Nodes() {
		wg.Add(1)
		go func(node *Node) {
			defer wg.Done()
			// Maintenance traffic bypasses the rate limiter
			h, err := node.BlockNumber(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			if h > maxH {
				maxH = h
			}
			mu.Unlock()
		}(n)
	}
	wg.Wait()

	if maxH > 0 {
		atomic.StoreUint64(&mc.globalHeight, maxH)
	}
}

// execute performs an RPC request with retry logic and auto node switching
func (mc *MultiClient) execute(ctx context.Context, op func(*Node) error) error {
	attempts := len(mc.nodes)
	if attempts > 3 {
		attempts = 3
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		node, err := mc.pickNodeAt(ctx, MinBlock(ctx))
		if err != nil {
			return err
		}

		err = op(node)
		node.Release()
		if err == nil {
			return nil
		}

		lastErr = err
		if isTerminal(err) {
			return err
		}
		// The failed node's score dropped via RecordMetric, so the next pick may differ
	}

	return lastErr
}

// ChainID retrieves the chain ID from the best available node
func (mc *MultiClient) ChainID(ctx context.Context) (*big.Int, error) {
	var res *big.Int
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.ChainID(ctx)
		return e
	})
	return res, err
}

// BlockNumber retrieves the latest block height, preferring a fresh request
// and falling back to the cached global height.
func (mc *MultiClient) BlockNumber(ctx context.Context) (uint64, error) {
	var res uint64
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.BlockNumber(ctx)
		return e
	})
	if err != nil {
		if h := atomic.LoadUint64(&mc.globalHeight); h > 0 && !isTerminal(err) {
			return h, nil
		}
		return 0, err
	}
	return res, nil
}

// HeaderByNumber retrieves a block header from the best available node
func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var res *types.Header
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.HeaderByNumber(ctx, number)
		return e
	})
	return res, err
}

// CodeAt retrieves the contract code at a given address from the best available node
func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var res []byte
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.CodeAt(ctx, account, blockNumber)
		return e
	})
	return res, err
}

// CallContract runs a read-only call. Reverts are returned without failover.
func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var res []byte
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.CallContract(ctx, msg, blockNumber)
		return e
	})
	return res, err
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var res uint64
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.PendingNonceAt(ctx, account)
		return e
	})
	return res, err
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var res *big.Int
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.SuggestGasPrice(ctx)
		return e
	})
	return res, err
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var res *big.Int
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.SuggestGasTipCap(ctx)
		return e
	})
	return res, err
}

func (mc *MultiClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var res uint64
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.EstimateGas(ctx, msg)
		return e
	})
	return res, err
}

// SendTransaction broadcasts through a single node. A broadcast that timed out
// may still have landed, so it is never replayed on another node.
func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	node, err := mc.pickNodeAt(ctx, MinBlock(ctx))
	if err != nil {
		return err
	}
	defer node.Release()
	return node.SendTransaction(ctx, tx)
}

// TransactionReceipt returns ethereum.NotFound while the transaction is pending
func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var res *types.Receipt
	err := mc.execute(ctx, func(n *Node) error {
		var e error
		res, e = n.TransactionReceipt(ctx, txHash)
		return e
	})
	return res, err
}

// Close closes all underlying RPC connections
func (mc *MultiClient) Close() {
	for _, n := range mc.nodes {
		n.Close()
	}
}

// pickNodeAt selects a node that has seen block h. Cached heights may trail
// the nodes, so they are refreshed once before giving up.
func (mc *MultiClient) pickNodeAt(ctx context.Context, h uint64) (*Node, error) {
	node, err := mc.pickAvailableNodeWithHeight(ctx, h)
	if errors.Is(err, ErrNoNodeMeetsHeight) {
		mc.syncNodes(ctx)
		node, err = mc.pickAvailableNodeWithHeight(ctx, h)
	}
	return node, err
}

// pickAvailableNodeWithHeight selects a node that meets the height requirement
func (mc *MultiClient) pickAvailableNodeWithHeight(ctx context.Context, requiredHeight uint64) (*Node, error) {
	globalH := atomic.LoadUint64(&mc.globalHeight)
	candidates := mc.Nodes()

	if len(candidates) == 0 {
		return nil, ErrNoAvailableNodes
	}

	if requiredHeight > 0 {
		synced := candidates[:0]
		for _, node := range candidates {
			if node.MeetsHeightRequirement(requiredHeight) {
				synced = append(synced, node)
			}
		}
		if len(synced) == 0 {
			return nil, ErrNoNodeMeetsHeight
		}
		candidates = synced
	}

	// Sort by score in descending order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score(globalH) > candidates[j].Score(globalH)
	})

	for _, node := range candidates {
		if err := node.TryAcquire(ctx); err == nil {
			return node, nil
		}
	}

	// All nodes are busy: block on the best one
	bestNode := candidates[0]

	if bestNode.IsCircuitBroken() {
		return nil, ErrNoAvailableNodes
	}

	return mc.waitForNode(ctx, bestNode)
}

// waitForNode blocks until the node becomes available
func (mc *MultiClient) waitForNode(ctx context.Context, node *Node) (*Node, error) {
	if node.limiter != nil {
		if err := node.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if node.semaphore != nil {
		select {
		case node.semaphore <- struct{}{}:
			return node, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return node, nil
}
