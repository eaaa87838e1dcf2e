package namer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/84hero/ens-namer/pkg/capability"
	"github.com/84hero/ens-namer/pkg/chain"
	"github.com/84hero/ens-namer/pkg/ens"
	"github.com/84hero/ens-namer/pkg/sink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultOpType      = "set-name"
	DefaultExplorerURL = "https://app.enscribe.xyz/explore"
)

// Target pairs a connection with the profile it is expected to serve.
type Target struct {
	Chain   Chain
	Profile chain.Profile
}

// Request is one naming invocation.
type Request struct {
	// Name must already be normalized.
	Name     string
	Contract string
	// CorrelationID tags every metrics event of this invocation.
	CorrelationID string

	L1 Target
	// L2 is set when the chain argument paired an L2. A nil L2.Chain is an error.
	L2 *Target
}

type Options struct {
	Reporter    Reporter
	OpType      string
	ExplorerURL string
}

// Engine reconciles ENS state for a contract. It holds no per-invocation
// state and is safe for concurrent use.
type Engine struct {
	reporter Reporter
	opType   string
	explorer string
	now      func() time.Time
}

func New(opts Options) *Engine {
	if opts.OpType == "" {
		opts.OpType = DefaultOpType
	}
	if opts.ExplorerURL == "" {
		opts.ExplorerURL = DefaultExplorerURL
	}
	return &Engine{
		reporter: opts.Reporter,
		opType:   opts.OpType,
		explorer: opts.ExplorerURL,
		now:      time.Now,
	}
}

// invocation carries everything one Run needs through the steps.
type invocation struct {
	e        *Engine
	req      Request
	name     ens.Name
	full     string
	node     common.Hash
	contract common.Address
	l1       Deployment
	res      *Result
}

// Run executes subname, forward, classification, reverse and L2 steps in
// order. Each write is confirmed before the next read. The first failing read
// or write aborts the run; writes already confirmed are kept in the returned
// Result, which is non-nil whenever validation passed.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	norm, err := ens.Normalize(req.Name)
	if err != nil {
		return nil, err
	}
	if norm != req.Name {
		return nil, fmt.Errorf("%w: %q is not normalized, use %q", ens.ErrInvalidNameFormat, req.Name, norm)
	}
	name, err := ens.ParseNormalizedName(req.Name)
	if err != nil {
		return nil, err
	}
	contract, err := ens.ParseAddress(req.Contract)
	if err != nil {
		return nil, err
	}
	if req.L1.Chain == nil {
		return nil, errors.New("namer: no L1 connection")
	}

	l1, err := NewDeployment(req.L1.Profile)
	if err != nil {
		return nil, err
	}
	if err := checkChainID(req.L1); err != nil {
		return nil, err
	}

	var l2 *L2Deployment
	if req.L2 != nil {
		if req.L2.Chain == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingL2Connection, req.L2.Profile.Name)
		}
		d, err := NewL2Deployment(req.L2.Profile)
		if err != nil {
			return nil, err
		}
		if err := checkChainID(*req.L2); err != nil {
			return nil, err
		}
		l2 = &d
	}

	inv := &invocation{
		e:        e,
		req:      req,
		name:     name,
		full:     req.Name,
		node:     ens.NameHash(req.Name),
		contract: contract,
		l1:       l1,
		res:      newResult(req.CorrelationID, req.Name, contract),
	}
	inv.res.ExplorerURL = e.explorerURL(req, contract)

	log.Info("Naming contract", "name", inv.full, "contract", contract, "chain", l1.Profile.Name, "wallet", req.L1.Chain.Wallet())

	if err := inv.subname(ctx); err != nil {
		return inv.res, fmt.Errorf("%s: %w", StepSubname, err)
	}
	if err := inv.forward(ctx); err != nil {
		return inv.res, fmt.Errorf("%s: %w", StepForwardResolution, err)
	}
	detector := capability.NewDetector(req.L1.Chain, l1.Registry)
	if err := inv.classify(ctx, detector); err != nil {
		return inv.res, fmt.Errorf("classify: %w", err)
	}
	if err := inv.reverse(ctx, detector); err != nil {
		return inv.res, fmt.Errorf("%s: %w", StepReverseResolution, err)
	}
	if l2 != nil {
		if err := inv.l2Forward(ctx, *l2); err != nil {
			return inv.res, fmt.Errorf("%s: %w", StepL2ForwardResolution, err)
		}
		if err := inv.l2Reverse(ctx, *l2); err != nil {
			return inv.res, fmt.Errorf("%s: %w", StepL2ReverseResolution, err)
		}
	}

	log.Info("Naming complete", "name", inv.full, "type", inv.res.ContractType, "writes", inv.res.Writes())
	return inv.res, nil
}

func checkChainID(t Target) error {
	if t.Profile.ChainID == 0 {
		return nil
	}
	if got := t.Chain.ChainID(); got != t.Profile.ChainID {
		return fmt.Errorf("%w: %s expects %d, node reports %d", ErrChainMismatch, t.Profile.Name, t.Profile.ChainID, got)
	}
	return nil
}

func (e *Engine) explorerURL(req Request, contract common.Address) string {
	id := req.L1.Profile.ChainID
	if req.L2 != nil {
		id = req.L2.Profile.ChainID
	}
	return fmt.Sprintf("%s/%d/%s", e.explorer, id, contract.Hex())
}

// record stores a confirmed write and reports it.
func (inv *invocation) record(ctx context.Context, step Step, c Chain, hash common.Hash) {
	inv.res.Transactions[step] = hash
	if inv.e.reporter == nil {
		return
	}

	ev := sink.Event{
		CorrelationID:   inv.req.CorrelationID,
		ContractAddress: inv.contract.Hex(),
		EnsName:         inv.full,
		DeployerAddress: c.Wallet().Hex(),
		Network:         c.ChainID(),
		Timestamp:       inv.e.now().Unix(),
		Step:            string(step),
		TxnHash:         hash.Hex(),
		ContractType:    string(inv.res.ContractType),
		OpType:          inv.e.opType,
		Source:          sink.Source,
	}
	if err := inv.e.reporter.Report(ctx, ev); err != nil {
		log.Warn("Metrics delivery failed", "step", step, "err", err)
	}
}

// first extracts the single return value of a call.
func first[T any](out []interface{}) (T, error) {
	var zero T
	if len(out) == 0 {
		return zero, errors.New("empty call result")
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("unexpected call result type %T", out[0])
	}
	return v, nil
}
