package chain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrInvalidProfile   = errors.New("invalid chain profile")
)

// Profile describes the ENS deployment on a chain.
// An empty address means the contract does not exist on that chain.
type Profile struct {
	Name    string
	ChainID uint64

	Registry           string
	PublicResolver     string
	NameWrapper        string
	ReverseRegistrar   string
	L2ReverseRegistrar string

	// CoinType is the ENSIP-11 coin type used for address records of this chain
	CoinType uint64

	// Settlement is the L1 a rollup settles to; empty for L1s
	Settlement string
}

// IsL2 reports whether the profile belongs to a rollup.
func (p Profile) IsL2() bool {
	return p.Settlement != ""
}

func (p Profile) RegistryAddress() (common.Address, bool) {
	return addressOf(p.Registry)
}

func (p Profile) PublicResolverAddress() (common.Address, bool) {
	return addressOf(p.PublicResolver)
}

func (p Profile) NameWrapperAddress() (common.Address, bool) {
	return addressOf(p.NameWrapper)
}

func (p Profile) ReverseRegistrarAddress() (common.Address, bool) {
	return addressOf(p.ReverseRegistrar)
}

func (p Profile) L2ReverseRegistrarAddress() (common.Address, bool) {
	return addressOf(p.L2ReverseRegistrar)
}

func addressOf(s string) (common.Address, bool) {
	if s == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

var (
	registry = make(map[string]Profile)
	byID     = make(map[uint64]string)
	mu       sync.RWMutex
)

// Register adds or replaces a profile in the global registry.
func Register(p Profile) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Name] = p
	if p.ChainID != 0 {
		byID[p.ChainID] = p.Name
	}
}

// Get retrieves a profile by its logical name.
func Get(name string) (Profile, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// GetProfile is Get with an ErrUnsupportedChain error for unknown names.
func GetProfile(name string) (Profile, error) {
	p, ok := Get(name)
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, name)
	}
	return p, nil
}

// ProfileByChainID looks a profile up by numeric chain id.
func ProfileByChainID(id uint64) (Profile, error) {
	mu.RLock()
	name, ok := byID[id]
	mu.RUnlock()
	if !ok {
		return Profile{}, fmt.Errorf("%w: chain id %d", ErrUnsupportedChain, id)
	}
	return GetProfile(name)
}

// Names lists registered profiles in alphabetical order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var hexAddress = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Validate checks that the registry address is present and that every
// configured address is well formed.
func Validate(p Profile) error {
	if p.Registry == "" {
		return fmt.Errorf("%w: %s: missing registry address", ErrInvalidProfile, p.Name)
	}
	fields := []struct {
		name  string
		value string
	}{
		{"registry", p.Registry},
		{"public resolver", p.PublicResolver},
		{"name wrapper", p.NameWrapper},
		{"reverse registrar", p.ReverseRegistrar},
		{"l2 reverse registrar", p.L2ReverseRegistrar},
	}
	for _, f := range fields {
		if f.value != "" && !hexAddress.MatchString(f.value) {
			return fmt.Errorf("%w: %s: bad %s address %q", ErrInvalidProfile, p.Name, f.name, f.value)
		}
	}
	return nil
}
