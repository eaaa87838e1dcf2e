package rpc

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNodeScore(t *testing.T) {
	n := &Node{
		config: NodeConfig{Priority: 10},
	}

	// Initial score: 10 * 100 = 1000
	assert.Equal(t, int64(1000), n.Score(0))

	// Latency update: (old=0) -> set to 100. Score: 1000 - (100/10) = 990
	n.RecordMetric(time.Now().Add(-100*time.Millisecond), nil)
	assert.Equal(t, int64(990), n.Score(0))

	// Errors: 1000 - 0 - 500 = 500
	n2 := &Node{config: NodeConfig{Priority: 10}}
	n2.RecordMetric(time.Now(), errors.New("fail"))
	assert.Equal(t, int64(500), n2.Score(0))

	// Height lag beyond 5 blocks: 1000 - 10*50 = 500
	n3 := &Node{config: NodeConfig{Priority: 10}}
	n3.UpdateHeight(90)
	assert.Equal(t, int64(500), n3.Score(100))
}

func newTestClient(t *testing.T, nodes ...*Node) *MultiClient {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	for _, n := range nodes {
		n.client.(*MockEthClient).On("BlockNumber", mock.Anything).Return(uint64(100), nil).Maybe()
	}
	mc, err := NewClientWithNodes(ctx, nodes)
	assert.NoError(t, err)
	return mc
}

func TestMultiClient_Failover(t *testing.T) {
	ctx := context.Background()

	// Node 1: always fails
	mock1 := new(MockEthClient)
	mock1.On("ChainID", mock.Anything).Return(nil, errors.New("connection error"))
	mock1.On("BlockNumber", mock.Anything).Return(uint64(0), errors.New("connection error"))

	// Node 2: succeeds
	mock2 := new(MockEthClient)
	mock2.On("ChainID", mock.Anything).Return(big.NewInt(11155111), nil)

	node1 := NewNodeWithClient(NodeConfig{URL: "node1", Priority: 10}, mock1)
	node2 := NewNodeWithClient(NodeConfig{URL: "node2", Priority: 8}, mock2)
	mc := newTestClient(t, node1, node2)

	id, err := mc.ChainID(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(11155111), id.Int64())
	assert.GreaterOrEqual(t, node1.GetTotalErrors(), uint64(1))
}

func TestMultiClient_RevertIsNotRetried(t *testing.T) {
	ctx := context.Background()
	to := common.HexToAddress("0x1")
	msg := ethereum.CallMsg{To: &to}

	mock1 := new(MockEthClient)
	mock1.On("CallContract", mock.Anything, msg, (*big.Int)(nil)).Return(nil, errors.New("execution reverted")).Once()
	mock2 := new(MockEthClient)

	node1 := NewNodeWithClient(NodeConfig{URL: "node1", Priority: 10}, mock1)
	node2 := NewNodeWithClient(NodeConfig{URL: "node2", Priority: 1}, mock2)
	mc := newTestClient(t, node1, node2)

	_, err := mc.CallContract(ctx, msg, nil)
	assert.True(t, IsRevert(err))
	mock2.AssertNotCalled(t, "CallContract", mock.Anything, mock.Anything, mock.Anything)
}

func TestMultiClient_SendTransactionSingleAttempt(t *testing.T) {
	ctx := context.Background()
	tx := types.NewTx(&types.DynamicFeeTx{Nonce: 1})

	mock1 := new(MockEthClient)
	mock1.On("SendTransaction", mock.Anything, tx).Return(errors.New("timeout")).Once()
	mock2 := new(MockEthClient)

	node1 := NewNodeWithClient(NodeConfig{URL: "node1", Priority: 10}, mock1)
	node2 := NewNodeWithClient(NodeConfig{URL: "node2", Priority: 1}, mock2)
	mc := newTestClient(t, node1, node2)

	err := mc.SendTransaction(ctx, tx)
	assert.Error(t, err)
	mock2.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestMultiClient_NoNodes(t *testing.T) {
	_, err := NewClientWithNodes(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewClient(context.Background(), nil)
	assert.Error(t, err)
}

func TestIsRevert(t *testing.T) {
	assert.False(t, IsRevert(nil))
	assert.False(t, IsRevert(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRevert(errors.New("execution reverted: Ownable: caller is not the owner")))
}

func TestMultiClient_MinBlockSkipsLaggingNode(t *testing.T) {
	to := common.HexToAddress("0x1")
	msg := ethereum.CallMsg{To: &to}

	// Node A served the receipt at block 100, then fails once
	mockA := new(MockEthClient)
	mockA.On("CallContract", mock.Anything, msg, (*big.Int)(nil)).Return(nil, errors.New("connection reset")).Once()
	mockA.On("CallContract", mock.Anything, msg, (*big.Int)(nil)).Return([]byte{0x01}, nil).Once()
	// Node B is one block behind
	mockB := new(MockEthClient)

	nodeA := NewNodeWithClient(NodeConfig{URL: "a", Priority: 10}, mockA)
	nodeB := NewNodeWithClient(NodeConfig{URL: "b", Priority: 8}, mockB)
	nodeA.UpdateHeight(100)
	nodeB.UpdateHeight(99)
	mc := &MultiClient{nodes: []*Node{nodeA, nodeB}}

	out, err := mc.CallContract(WithMinBlock(context.Background(), 100), msg, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
	mockB.AssertNotCalled(t, "CallContract", mock.Anything, mock.Anything, mock.Anything)

	// Without a floor the healthier lagging node is fair game
	mockB.On("CallContract", mock.Anything, msg, (*big.Int)(nil)).Return([]byte{0x02}, nil).Once()
	for i := 0; i < 3; i++ {
		nodeA.RecordMetric(time.Now(), errors.New("fail"))
	}
	out, err = mc.CallContract(context.Background(), msg, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x02}, out)
}

func TestMultiClient_MinBlockRefreshesHeights(t *testing.T) {
	to := common.HexToAddress("0x1")
	msg := ethereum.CallMsg{To: &to}

	mockB := new(MockEthClient)
	nodeB := NewNodeWithClient(NodeConfig{URL: "b", Priority: 8}, mockB)
	nodeB.UpdateHeight(99)
	mc := &MultiClient{nodes: []*Node{nodeB}}

	// Still behind after a refresh
	mockB.On("BlockNumber", mock.Anything).Return(uint64(99), nil).Once()
	_, err := mc.CallContract(WithMinBlock(context.Background(), 100), msg, nil)
	assert.ErrorIs(t, err, ErrNoNodeMeetsHeight)

	// Caught up
	mockB.On("BlockNumber", mock.Anything).Return(uint64(100), nil).Once()
	mockB.On("CallContract", mock.Anything, msg, (*big.Int)(nil)).Return([]byte{0x02}, nil).Once()
	out, err := mc.CallContract(WithMinBlock(context.Background(), 100), msg, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x02}, out)
}

func TestMinBlock(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, uint64(0), MinBlock(ctx))
	assert.Equal(t, uint64(0), MinBlock(WithMinBlock(ctx, 0)))
	assert.Equal(t, uint64(42), MinBlock(WithMinBlock(ctx, 42)))
}
