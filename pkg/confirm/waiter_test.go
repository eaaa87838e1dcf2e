package confirm

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

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func TestWaiter_PendingThenMined(t *testing.T) {
	hash := common.HexToHash("0x1")
	b := new(MockBackend)
	b.On("TransactionReceipt", mock.Anything, hash).Return(nil, ethereum.NotFound).Twice()
	b.On("TransactionReceipt", mock.Anything, hash).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(10),
		TxHash:      hash,
	}, nil).Once()

	w := New(b, Config{Interval: time.Millisecond})
	r, err := w.Wait(context.Background(), hash)
	assert.NoError(t, err)
	assert.Equal(t, hash, r.TxHash)
	b.AssertExpectations(t)
}

func TestWaiter_Confirmations(t *testing.T) {
	hash := common.HexToHash("0x2")
	b := new(MockBackend)
	b.On("TransactionReceipt", mock.Anything, hash).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(10),
	}, nil)
	b.On("BlockNumber", mock.Anything).Return(uint64(10), nil).Once()
	b.On("BlockNumber", mock.Anything).Return(uint64(12), nil).Once()

	w := New(b, Config{Interval: time.Millisecond, Confirmations: 3})
	_, err := w.Wait(context.Background(), hash)
	assert.NoError(t, err)
	b.AssertNumberOfCalls(t, "BlockNumber", 2)
}

func TestWaiter_Reverted(t *testing.T) {
	hash := common.HexToHash("0x3")
	b := new(MockBackend)
	b.On("TransactionReceipt", mock.Anything, hash).Return(&types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(10),
	}, nil)

	w := New(b, Config{Interval: time.Millisecond})
	r, err := w.Wait(context.Background(), hash)
	assert.ErrorIs(t, err, ErrTxFailed)
	assert.NotNil(t, r)
}

func TestWaiter_TransientErrorRetried(t *testing.T) {
	hash := common.HexToHash("0x4")
	b := new(MockBackend)
	b.On("TransactionReceipt", mock.Anything, hash).Return(nil, errors.New("connection reset")).Once()
	b.On("TransactionReceipt", mock.Anything, hash).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(1),
	}, nil).Once()

	w := New(b, Config{Interval: time.Millisecond})
	_, err := w.Wait(context.Background(), hash)
	assert.NoError(t, err)
}

func TestWaiter_ContextCancel(t *testing.T) {
	hash := common.HexToHash("0x5")
	b := new(MockBackend)
	b.On("TransactionReceipt", mock.Anything, hash).Return(nil, ethereum.NotFound)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w := New(b, Config{Interval: time.Millisecond})
	_, err := w.Wait(ctx, hash)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfirmed(t *testing.T) {
	assert.True(t, confirmed(big.NewInt(10), 10, 1))
	assert.False(t, confirmed(big.NewInt(10), 10, 2))
	assert.True(t, confirmed(big.NewInt(10), 11, 2))
	assert.False(t, confirmed(big.NewInt(10), 9, 1))
	assert.False(t, confirmed(nil, 9, 1))
}
