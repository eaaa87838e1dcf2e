package namer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/84hero/ens-namer/pkg/capability"
	"github.com/84hero/ens-namer/pkg/conn"
	"github.com/84hero/ens-namer/pkg/contracts"
	"github.com/84hero/ens-namer/pkg/ens"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

func (inv *invocation) subname(ctx context.Context) error {
	c := inv.req.L1.Chain
	d := inv.l1

	out, err := c.Call(ctx, d.Registry, contracts.Registry, "recordExists", inv.node)
	if err != nil {
		return err
	}
	exists, err := first[bool](out)
	if err != nil {
		return err
	}
	if exists {
		log.Info("Subname exists, skipping", "name", inv.full, "node", inv.node)
		return nil
	}

	parent := ens.NameHash(inv.name.Parent)
	wrapped := false
	if d.HasNameWrapper {
		out, err := c.Call(ctx, d.NameWrapper, contracts.NameWrapper, "isWrapped", parent)
		if err != nil {
			return err
		}
		if wrapped, err = first[bool](out); err != nil {
			return err
		}
	}

	var hash common.Hash
	if wrapped {
		hash, err = c.Transact(ctx, d.NameWrapper, contracts.NameWrapper, "setSubnodeRecord",
			parent, inv.name.Label, c.Wallet(), d.PublicResolver, uint64(0), uint32(0), uint64(0))
	} else {
		hash, err = c.Transact(ctx, d.Registry, contracts.Registry, "setSubnodeRecord",
			parent, ens.LabelHash(inv.name.Label), c.Wallet(), d.PublicResolver, uint64(0))
	}
	if err != nil {
		return err
	}

	log.Info("Subname created", "name", inv.full, "wrapped", wrapped, "tx", hash)
	inv.record(ctx, StepSubname, c, hash)
	return nil
}

func (inv *invocation) forward(ctx context.Context) error {
	c := inv.req.L1.Chain
	resolver := inv.l1.PublicResolver

	out, err := c.Call(ctx, resolver, contracts.PublicResolver, "addr", inv.node)
	if err != nil {
		return err
	}
	current, err := first[common.Address](out)
	if err != nil {
		return err
	}
	if current == inv.contract {
		log.Info("Forward resolution already set, skipping", "name", inv.full, "addr", current)
		return nil
	}

	hash, err := c.Transact(ctx, resolver, contracts.PublicResolver, "setAddr", inv.node, inv.contract)
	if err != nil {
		return err
	}
	log.Info("Forward resolution set", "name", inv.full, "addr", inv.contract, "tx", hash)
	inv.record(ctx, StepForwardResolution, c, hash)
	return nil
}

func (inv *invocation) classify(ctx context.Context, d *capability.Detector) error {
	kind, err := d.Detect(ctx, inv.contract.Hex())
	if err != nil {
		return err
	}
	inv.res.ContractType = contractTypeOf(kind)
	log.Info("Contract classified", "contract", inv.contract, "type", inv.res.ContractType)
	return nil
}

func (inv *invocation) reverse(ctx context.Context, d *capability.Detector) error {
	c := inv.req.L1.Chain
	dep := inv.l1

	if inv.res.ContractType == Unknown {
		inv.res.Reverse = ErrUnclassifiedContract
		log.Warn("Skipping reverse resolution", "contract", inv.contract, "reason", ErrUnclassifiedContract)
		return nil
	}

	o, err := d.IsAuthorizedOwner(ctx, inv.contract.Hex())
	if o == capability.ConnectionFailure {
		return err
	}
	if o != capability.Detected {
		inv.res.Reverse = ErrUnauthorized
		log.Warn("Skipping reverse resolution", "contract", inv.contract, "wallet", c.Wallet(), "reason", ErrUnauthorized)
		return nil
	}

	reverseNode := ens.ReverseNode(inv.contract)
	out, err := c.Call(ctx, dep.PublicResolver, contracts.PublicResolver, "name", reverseNode)
	if err != nil {
		return err
	}
	current, err := first[string](out)
	if err != nil {
		return err
	}
	if current == inv.full {
		log.Info("Reverse resolution already set, skipping", "contract", inv.contract, "name", current)
		return nil
	}

	var hash common.Hash
	switch inv.res.ContractType {
	case ReverseClaimer:
		hash, err = c.Transact(ctx, dep.PublicResolver, contracts.PublicResolver, "setName", reverseNode, inv.full)
	case Ownable:
		if !dep.HasReverseRegistrar {
			return fmt.Errorf("%w: %s has no reverse registrar", ErrMissingCapability, dep.Profile.Name)
		}
		hash, err = c.Transact(ctx, dep.ReverseRegistrar, contracts.ReverseRegistrar, "setNameForAddr",
			inv.contract, c.Wallet(), dep.PublicResolver, inv.full)
	}
	if err != nil {
		return err
	}

	log.Info("Reverse resolution set", "contract", inv.contract, "name", inv.full, "type", inv.res.ContractType, "tx", hash)
	inv.record(ctx, StepReverseResolution, c, hash)
	return nil
}

// l2Forward writes the coin-typed address record on the L1 resolver.
func (inv *invocation) l2Forward(ctx context.Context, l2 L2Deployment) error {
	c := inv.req.L1.Chain
	resolver := inv.l1.PublicResolver
	coinType := new(big.Int).SetUint64(l2.Profile.CoinType)

	out, err := c.Call(ctx, resolver, contracts.MulticoinResolver, "addr", inv.node, coinType)
	if err != nil {
		return err
	}
	current, err := first[[]byte](out)
	if err != nil {
		return err
	}
	if bytes.Equal(current, inv.contract.Bytes()) {
		log.Info("L2 forward resolution already set, skipping", "name", inv.full, "coinType", coinType)
		return nil
	}

	hash, err := c.Transact(ctx, resolver, contracts.MulticoinResolver, "setAddr", inv.node, coinType, inv.contract.Bytes())
	if err != nil {
		return err
	}
	log.Info("L2 forward resolution set", "name", inv.full, "coinType", coinType, "tx", hash)
	inv.record(ctx, StepL2ForwardResolution, c, hash)
	return nil
}

func (inv *invocation) l2Reverse(ctx context.Context, l2 L2Deployment) error {
	c := inv.req.L2.Chain
	// Only Owner runs on L2, and it never reads the registry.
	d := capability.NewDetector(c, common.Address{})

	_, o, err := d.Owner(ctx, inv.contract)
	switch o {
	case capability.ConnectionFailure:
		return err
	case capability.NotDetected:
		inv.res.L2Reverse = ErrNotOwnableOnL2
		log.Info("Skipping L2 reverse resolution", "chain", l2.Profile.Name, "contract", inv.contract, "reason", ErrNotOwnableOnL2)
		return nil
	}

	// Older registrars have no nameForAddr; a revert just means "unknown".
	out, err := c.Call(ctx, l2.L2ReverseRegistrar, contracts.L2ReverseRegistrar, "nameForAddr", inv.contract)
	switch {
	case err == nil:
		if current, _ := first[string](out); current == inv.full {
			log.Info("L2 reverse resolution already set, skipping", "chain", l2.Profile.Name, "contract", inv.contract)
			return nil
		}
	case !errors.Is(err, conn.ErrCallReverted):
		return err
	}

	hash, err := c.Transact(ctx, l2.L2ReverseRegistrar, contracts.L2ReverseRegistrar, "setNameForAddr", inv.contract, inv.full)
	if err != nil {
		return err
	}
	log.Info("L2 reverse resolution set", "chain", l2.Profile.Name, "contract", inv.contract, "tx", hash)
	inv.record(ctx, StepL2ReverseResolution, c, hash)
	return nil
}
