package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Trimmed ABIs: only the functions and events used for naming a contract.

const RegistryABI = `[
{"inputs":[{"name":"node","type":"bytes32"}],"name":"recordExists","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"},{"name":"label","type":"bytes32"},{"name":"owner","type":"address"},{"name":"resolver","type":"address"},{"name":"ttl","type":"uint64"}],"name":"setSubnodeRecord","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"node","type":"bytes32"},{"indexed":true,"name":"label","type":"bytes32"},{"indexed":false,"name":"owner","type":"address"}],"name":"NewOwner","type":"event"}
]`

const PublicResolverABI = `[
{"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"},{"name":"a","type":"address"}],"name":"setAddr","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"},{"name":"newName","type":"string"}],"name":"setName","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"node","type":"bytes32"},{"indexed":false,"name":"a","type":"address"}],"name":"AddrChanged","type":"event"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"node","type":"bytes32"},{"indexed":false,"name":"name","type":"string"}],"name":"NameChanged","type":"event"}
]`

// MulticoinResolverABI holds the ENSIP-9 coin-typed overloads of addr/setAddr.
// They live in their own table so they keep their on-chain names.
const MulticoinResolverABI = `[
{"inputs":[{"name":"node","type":"bytes32"},{"name":"coinType","type":"uint256"}],"name":"addr","outputs":[{"name":"","type":"bytes"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"},{"name":"coinType","type":"uint256"},{"name":"a","type":"bytes"}],"name":"setAddr","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"node","type":"bytes32"},{"indexed":false,"name":"coinType","type":"uint256"},{"indexed":false,"name":"newAddress","type":"bytes"}],"name":"AddressChanged","type":"event"}
]`

const NameWrapperABI = `[
{"inputs":[{"name":"node","type":"bytes32"}],"name":"isWrapped","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"parentNode","type":"bytes32"},{"name":"label","type":"string"},{"name":"owner","type":"address"},{"name":"resolver","type":"address"},{"name":"ttl","type":"uint64"},{"name":"fuses","type":"uint32"},{"name":"expiry","type":"uint64"}],"name":"setSubnodeRecord","outputs":[{"name":"node","type":"bytes32"}],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"node","type":"bytes32"},{"indexed":false,"name":"name","type":"bytes"},{"indexed":false,"name":"owner","type":"address"},{"indexed":false,"name":"fuses","type":"uint32"},{"indexed":false,"name":"expiry","type":"uint64"}],"name":"NameWrapped","type":"event"}
]`

const ReverseRegistrarABI = `[
{"inputs":[{"name":"addr","type":"address"},{"name":"owner","type":"address"},{"name":"resolver","type":"address"},{"name":"name","type":"string"}],"name":"setNameForAddr","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"addr","type":"address"},{"indexed":true,"name":"node","type":"bytes32"}],"name":"ReverseClaimed","type":"event"}
]`

const L2ReverseRegistrarABI = `[
{"inputs":[{"name":"addr","type":"address"}],"name":"nameForAddr","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"addr","type":"address"},{"name":"name","type":"string"}],"name":"setNameForAddr","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"addr","type":"address"},{"indexed":false,"name":"name","type":"string"}],"name":"NameForAddrChanged","type":"event"}
]`

const OwnableABI = `[
{"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	Registry           = mustParse(RegistryABI)
	PublicResolver     = mustParse(PublicResolverABI)
	MulticoinResolver  = mustParse(MulticoinResolverABI)
	NameWrapper        = mustParse(NameWrapperABI)
	ReverseRegistrar   = mustParse(ReverseRegistrarABI)
	L2ReverseRegistrar = mustParse(L2ReverseRegistrarABI)
	Ownable            = mustParse(OwnableABI)
)

// All returns every table, used to decode receipts regardless of which
// contract emitted the log.
func All() []*abi.ABI {
	return []*abi.ABI{
		Registry, PublicResolver, MulticoinResolver, NameWrapper,
		ReverseRegistrar, L2ReverseRegistrar, Ownable,
	}
}

func mustParse(s string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return &parsed
}
