package rpc

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Error definitions
var (
	ErrNoAvailableNodes  = errors.New("no available rpc nodes")
	ErrNoNodeMeetsHeight = errors.New("no node meets the required block height")
	ErrNodeBusy          = errors.New("rpc node busy")
	ErrCircuitBroken     = errors.New("rpc node circuit broken")
)

// JSON-RPC error code used by geth-compatible nodes for EVM reverts
const revertErrorCode = 3

// IsRevert reports whether err is an EVM revert returned by the node, as
// opposed to a transport or node failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// isTerminal errors are not worth retrying on another node.
func isTerminal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ethereum.NotFound) ||
		IsRevert(err)
}
