package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/84hero/ens-namer/pkg/conn"
	"github.com/84hero/ens-namer/pkg/contracts"
	"github.com/84hero/ens-namer/pkg/ens"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller is the read side of a chain connection.
type Caller interface {
	Wallet() common.Address
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	Call(ctx context.Context, to common.Address, table *abi.ABI, method string, args ...interface{}) ([]interface{}, error)
}

// Outcome of a single probe
type Outcome int

const (
	NotDetected Outcome = iota
	Detected
	ConnectionFailure
)

func (o Outcome) String() string {
	switch o {
	case Detected:
		return "detected"
	case NotDetected:
		return "not-detected"
	case ConnectionFailure:
		return "connection-failure"
	default:
		return "unknown"
	}
}

// Capability is the naming mechanism a contract exposes.
type Capability int

const (
	Unsupported Capability = iota
	SelfClaiming
	OwnerGated
)

func (c Capability) String() string {
	switch c {
	case SelfClaiming:
		return "self-claiming"
	case OwnerGated:
		return "owner-gated"
	default:
		return "unsupported"
	}
}

// Detector probes a contract through a Caller. Registry is the ENS registry
// of the chain the Caller is connected to.
type Detector struct {
	caller   Caller
	registry common.Address
}

func NewDetector(caller Caller, registry common.Address) *Detector {
	return &Detector{caller: caller, registry: registry}
}

// classify turns a call error into a probe outcome.
func classify(err error) (Outcome, error) {
	if errors.Is(err, conn.ErrCallReverted) {
		return NotDetected, nil
	}
	return ConnectionFailure, err
}

func target(addr string) (common.Address, bool) {
	if ens.IsAddressEmpty(addr) || !ens.IsAddressValid(addr) {
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}

// Owner reads owner() from addr. NotDetected means addr has no code or the
// call reverted.
func (d *Detector) Owner(ctx context.Context, addr common.Address) (common.Address, Outcome, error) {
	code, err := d.caller.CodeAt(ctx, addr)
	if err != nil {
		return common.Address{}, ConnectionFailure, err
	}
	if len(code) == 0 {
		return common.Address{}, NotDetected, nil
	}

	out, err := d.caller.Call(ctx, addr, contracts.Ownable, "owner")
	if err != nil {
		o, err := classify(err)
		return common.Address{}, o, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, NotDetected, nil
	}
	return owner, Detected, nil
}

// ReverseOwner reads the registry owner of the reverse node of addr.
func (d *Detector) ReverseOwner(ctx context.Context, addr common.Address) (common.Address, Outcome, error) {
	out, err := d.caller.Call(ctx, d.registry, contracts.Registry, "owner", ens.ReverseNode(addr))
	if err != nil {
		o, err := classify(err)
		return common.Address{}, o, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, NotDetected, nil
	}
	return owner, Detected, nil
}

// IsOwnable reports whether addr answers owner() with any address.
func (d *Detector) IsOwnable(ctx context.Context, addr string) (Outcome, error) {
	a, ok := target(addr)
	if !ok {
		return NotDetected, nil
	}
	_, o, err := d.Owner(ctx, a)
	return o, err
}

// IsSelfClaiming reports whether the reverse node of addr is owned by the
// invoking wallet.
func (d *Detector) IsSelfClaiming(ctx context.Context, addr string) (Outcome, error) {
	a, ok := target(addr)
	if !ok {
		return NotDetected, nil
	}
	owner, o, err := d.ReverseOwner(ctx, a)
	if o != Detected {
		return o, err
	}
	if owner != d.caller.Wallet() {
		return NotDetected, nil
	}
	return Detected, nil
}

// IsAuthorizedOwner is the gate for reverse-resolution writes: owner() must
// equal the wallet, or, when owner() reverts, the reverse node must be owned
// by the wallet.
func (d *Detector) IsAuthorizedOwner(ctx context.Context, addr string) (Outcome, error) {
	a, ok := target(addr)
	if !ok {
		return NotDetected, nil
	}
	owner, o, err := d.Owner(ctx, a)
	switch o {
	case ConnectionFailure:
		return o, err
	case Detected:
		if owner == d.caller.Wallet() {
			return Detected, nil
		}
		return NotDetected, nil
	}
	return d.IsSelfClaiming(ctx, addr)
}

// Detect runs the self-claiming probe and then the ownable probe. A positive
// ownable probe wins.
func (d *Detector) Detect(ctx context.Context, addr string) (Capability, error) {
	result := Unsupported

	o, err := d.IsSelfClaiming(ctx, addr)
	if o == ConnectionFailure {
		return Unsupported, fmt.Errorf("self-claiming probe: %w", err)
	}
	if o == Detected {
		result = SelfClaiming
	}

	o, err = d.IsOwnable(ctx, addr)
	if o == ConnectionFailure {
		return Unsupported, fmt.Errorf("ownable probe: %w", err)
	}
	if o == Detected {
		result = OwnerGated
	}
	return result, nil
}
