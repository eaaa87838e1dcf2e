package namer

import (
	"context"
	"errors"

	"github.com/84hero/ens-namer/pkg/capability"
	"github.com/84hero/ens-namer/pkg/sink"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnauthorized and ErrUnclassifiedContract end the reverse step only.
	// They are reported in Result, never returned by Run.
	ErrUnauthorized         = errors.New("wallet is not the owner of the contract")
	ErrUnclassifiedContract = errors.New("only Ownable/ReverseClaimer contracts can be named")
	// ErrNotOwnableOnL2 marks a skipped L2 reverse step.
	ErrNotOwnableOnL2 = errors.New("contract is not ownable on the L2 chain")

	ErrMissingCapability   = errors.New("chain profile lacks a required contract")
	ErrMissingL2Connection = errors.New("an L2 chain is paired but no L2 connection was given")
	ErrChainMismatch       = errors.New("connected chain id does not match the chain profile")
)

// Chain is a connection the engine reads from and writes to.
type Chain interface {
	capability.Caller
	ChainID() uint64
	// Transact blocks until the transaction is confirmed.
	Transact(ctx context.Context, to common.Address, table *abi.ABI, method string, args ...interface{}) (common.Hash, error)
}

// Reporter receives one event per confirmed write. Errors are logged and dropped.
type Reporter interface {
	Report(ctx context.Context, ev sink.Event) error
}

// Step names a reconciliation step.
type Step string

const (
	StepSubname             Step = "subname"
	StepForwardResolution   Step = "forwardResolution"
	StepReverseResolution   Step = "reverseResolution"
	StepL2ForwardResolution Step = "l2ForwardResolution"
	StepL2ReverseResolution Step = "l2ReverseResolution"
)

// Steps lists every step in execution order.
var Steps = []Step{
	StepSubname,
	StepForwardResolution,
	StepReverseResolution,
	StepL2ForwardResolution,
	StepL2ReverseResolution,
}

type ContractType string

const (
	ReverseClaimer ContractType = "ReverseClaimer"
	Ownable        ContractType = "Ownable"
	Unknown        ContractType = "Unknown"
)

func contractTypeOf(c capability.Capability) ContractType {
	switch c {
	case capability.SelfClaiming:
		return ReverseClaimer
	case capability.OwnerGated:
		return Ownable
	default:
		return Unknown
	}
}

// Result of one invocation. A step missing from Transactions was skipped
// because on-chain state already matched.
type Result struct {
	CorrelationID string               `json:"correlation_id"`
	Name          string               `json:"name"`
	Contract      common.Address       `json:"contract"`
	ContractType  ContractType         `json:"contract_type"`
	Transactions  map[Step]common.Hash `json:"transactions"`
	ExplorerURL   string               `json:"explorer_url,omitempty"`

	// Reverse is nil, ErrUnauthorized or ErrUnclassifiedContract.
	Reverse error `json:"-"`
	// L2Reverse is nil or ErrNotOwnableOnL2.
	L2Reverse error `json:"-"`
}

func newResult(id, name string, contract common.Address) *Result {
	return &Result{
		CorrelationID: id,
		Name:          name,
		Contract:      contract,
		ContractType:  Unknown,
		Transactions:  make(map[Step]common.Hash),
	}
}

// Tx returns the transaction submitted for step, if any.
func (r *Result) Tx(step Step) (common.Hash, bool) {
	h, ok := r.Transactions[step]
	return h, ok
}

// Writes counts submitted transactions.
func (r *Result) Writes() int {
	return len(r.Transactions)
}
