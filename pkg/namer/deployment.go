package namer

import (
	"fmt"

	"github.com/84hero/ens-namer/pkg/chain"
	"github.com/ethereum/go-ethereum/common"
)

// Deployment is the set of ENS contracts on one chain. It is built per
// invocation from a profile and passed explicitly to every step.
type Deployment struct {
	Profile chain.Profile

	Registry         common.Address
	PublicResolver   common.Address
	NameWrapper      common.Address
	ReverseRegistrar common.Address

	HasNameWrapper      bool
	HasReverseRegistrar bool
}

// NewDeployment resolves the L1 contracts of p. A registry and a public
// resolver are required.
func NewDeployment(p chain.Profile) (Deployment, error) {
	d := Deployment{Profile: p}

	var ok bool
	if d.Registry, ok = p.RegistryAddress(); !ok {
		return d, fmt.Errorf("%w: %s has no registry", ErrMissingCapability, p.Name)
	}
	if d.PublicResolver, ok = p.PublicResolverAddress(); !ok {
		return d, fmt.Errorf("%w: %s has no public resolver", ErrMissingCapability, p.Name)
	}
	d.NameWrapper, d.HasNameWrapper = p.NameWrapperAddress()
	d.ReverseRegistrar, d.HasReverseRegistrar = p.ReverseRegistrarAddress()
	return d, nil
}

// L2Deployment is the part of an L2 profile the mirroring step needs.
type L2Deployment struct {
	Profile            chain.Profile
	L2ReverseRegistrar common.Address
}

func NewL2Deployment(p chain.Profile) (L2Deployment, error) {
	d := L2Deployment{Profile: p}

	var ok bool
	if d.L2ReverseRegistrar, ok = p.L2ReverseRegistrarAddress(); !ok {
		return d, fmt.Errorf("%w: %s has no L2 reverse registrar", ErrMissingCapability, p.Name)
	}
	return d, nil
}
