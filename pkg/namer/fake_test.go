package namer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/84hero/ens-namer/pkg/chain"
	"github.com/84hero/ens-namer/pkg/conn"
	"github.com/84hero/ens-namer/pkg/ens"
	"github.com/84hero/ens-namer/pkg/sink"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// world is an in-memory ENS deployment for one chain.
type world struct {
	records   map[common.Hash]bool
	regOwner  map[common.Hash]common.Address
	wrapped   map[common.Hash]bool
	addr      map[common.Hash]common.Address
	coinAddr  map[string][]byte
	names     map[common.Hash]string
	owners    map[common.Address]common.Address // Ownable contracts
	l2Names   map[common.Address]string
	noCode    map[common.Address]bool // accounts without deployed code
	noL2Query bool                    // registrar without nameForAddr
}

func newWorld() *world {
	return &world{
		records:  make(map[common.Hash]bool),
		regOwner: make(map[common.Hash]common.Address),
		wrapped:  make(map[common.Hash]bool),
		addr:     make(map[common.Hash]common.Address),
		coinAddr: make(map[string][]byte),
		names:    make(map[common.Hash]string),
		owners:   make(map[common.Address]common.Address),
		l2Names:  make(map[common.Address]string),
		noCode:   make(map[common.Address]bool),
	}
}

type write struct {
	To     common.Address
	Method string
}

// fakeChain implements Chain on top of a world.
type fakeChain struct {
	w       *world
	id      uint64
	wallet  common.Address
	profile chain.Profile

	mu     sync.Mutex
	calls  []write
	writes []write

	// revertWrite makes Transact revert for this method
	revertWrite string
	// failCall makes Call fail with a transport error for this method
	failCall string
}

func newFakeChain(w *world, p chain.Profile, wallet common.Address) *fakeChain {
	return &fakeChain{w: w, id: p.ChainID, wallet: wallet, profile: p}
}

func (f *fakeChain) Wallet() common.Address { return f.wallet }
func (f *fakeChain) ChainID() uint64        { return f.id }

func (f *fakeChain) addrOf(s string) common.Address { return common.HexToAddress(s) }

func revert(method string) error {
	return fmt.Errorf("%w: %s", conn.ErrCallReverted, method)
}

func coinKey(node common.Hash, coin *big.Int) string {
	return node.Hex() + "/" + coin.String()
}

func (f *fakeChain) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.w.noCode[addr] {
		return nil, nil
	}
	return []byte{0x60, 0x80}, nil
}

func (f *fakeChain) Call(ctx context.Context, to common.Address, table *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, write{to, method})

	if method == f.failCall {
		return nil, errors.New("dial tcp: connection refused")
	}

	p := f.profile
	switch {
	case to == f.addrOf(p.Registry) && method == "recordExists":
		return []interface{}{f.w.records[args[0].(common.Hash)]}, nil
	case to == f.addrOf(p.Registry) && method == "owner":
		return []interface{}{f.w.regOwner[args[0].(common.Hash)]}, nil
	case to == f.addrOf(p.NameWrapper) && method == "isWrapped":
		return []interface{}{f.w.wrapped[args[0].(common.Hash)]}, nil
	case to == f.addrOf(p.PublicResolver) && method == "addr" && len(args) == 1:
		return []interface{}{f.w.addr[args[0].(common.Hash)]}, nil
	case to == f.addrOf(p.PublicResolver) && method == "addr" && len(args) == 2:
		return []interface{}{f.w.coinAddr[coinKey(args[0].(common.Hash), args[1].(*big.Int))]}, nil
	case to == f.addrOf(p.PublicResolver) && method == "name":
		return []interface{}{f.w.names[args[0].(common.Hash)]}, nil
	case to == f.addrOf(p.L2ReverseRegistrar) && method == "nameForAddr":
		if f.w.noL2Query {
			return nil, revert(method)
		}
		return []interface{}{f.w.l2Names[args[0].(common.Address)]}, nil
	case method == "owner":
		owner, ok := f.w.owners[to]
		if !ok {
			return nil, revert(method)
		}
		return []interface{}{owner}, nil
	}
	return nil, revert(method)
}

func (f *fakeChain) Transact(ctx context.Context, to common.Address, table *abi.ABI, method string, args ...interface{}) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if method == f.revertWrite {
		return common.Hash{}, revert(method)
	}
	f.writes = append(f.writes, write{to, method})
	hash := common.BigToHash(big.NewInt(int64(len(f.writes))))

	p := f.profile
	switch {
	case to == f.addrOf(p.Registry) && method == "setSubnodeRecord":
		parent, label := args[0].(common.Hash), args[1].(common.Hash)
		node := crypto.Keccak256Hash(parent.Bytes(), label.Bytes())
		f.w.records[node] = true
		f.w.regOwner[node] = args[2].(common.Address)
	case to == f.addrOf(p.NameWrapper) && method == "setSubnodeRecord":
		node := ens.Subnode(args[0].(common.Hash), args[1].(string))
		f.w.records[node] = true
		f.w.regOwner[node] = f.addrOf(p.NameWrapper)
	case to == f.addrOf(p.PublicResolver) && method == "setAddr" && len(args) == 2:
		f.w.addr[args[0].(common.Hash)] = args[1].(common.Address)
	case to == f.addrOf(p.PublicResolver) && method == "setAddr" && len(args) == 3:
		f.w.coinAddr[coinKey(args[0].(common.Hash), args[1].(*big.Int))] = args[2].([]byte)
	case to == f.addrOf(p.PublicResolver) && method == "setName":
		f.w.names[args[0].(common.Hash)] = args[1].(string)
	case to == f.addrOf(p.ReverseRegistrar) && method == "setNameForAddr":
		f.w.names[ens.ReverseNode(args[0].(common.Address))] = args[3].(string)
	case to == f.addrOf(p.L2ReverseRegistrar) && method == "setNameForAddr":
		f.w.l2Names[args[0].(common.Address)] = args[1].(string)
	default:
		return common.Hash{}, revert(method)
	}
	return hash, nil
}

func (f *fakeChain) Writes() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

func (f *fakeChain) called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Method == method {
			return true
		}
	}
	return false
}

type memReporter struct {
	mu     sync.Mutex
	events []sink.Event
	err    error
}

func (r *memReporter) Report(ctx context.Context, ev sink.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}
