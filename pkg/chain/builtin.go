package chain

const (
	Mainnet         = "mainnet"
	Sepolia         = "sepolia"
	Linea           = "linea"
	LineaSepolia    = "linea-sepolia"
	Base            = "base"
	BaseSepolia     = "base-sepolia"
	Optimism        = "optimism"
	OptimismSepolia = "optimism-sepolia"
	Arbitrum        = "arbitrum"
	ArbitrumSepolia = "arbitrum-sepolia"
	Scroll          = "scroll"
	ScrollSepolia   = "scroll-sepolia"
	Localhost       = "localhost"
)

const (
	ensRegistry         = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"
	l2ReverseMainnet    = "0x0000000000D8e504002cC26E3Ec46D81971C1664"
	l2ReverseTestnet    = "0x00000BeEF055f7934784D6d81b6BC86665630dbA"
	ethCoinType  uint64 = 60
)

// Built-in profiles
func init() {
	Register(Profile{
		Name:             Mainnet,
		ChainID:          1,
		Registry:         ensRegistry,
		PublicResolver:   "0xF29100983E058B709F3D539b0c765937B804AC15",
		NameWrapper:      "0xD4416b13d2b3a9aBae7AcD5D6C2BbDBE25686401",
		ReverseRegistrar: "0xa58E81fe9b61B5c3fE2AFD33CF304c454AbFc7Cb",
		CoinType:         ethCoinType,
	})

	Register(Profile{
		Name:             Sepolia,
		ChainID:          11155111,
		Registry:         ensRegistry,
		PublicResolver:   "0xE99638b40E4Fff0129D56f03b55b6bbC4BBE49b5",
		NameWrapper:      "0x0635513f179D50A207757E05759CbD106d7dFcE8",
		ReverseRegistrar: "0xA0a1AbcDAe1a2a4A2EF8e9113Ff0e02DD81DC0C6",
		CoinType:         ethCoinType,
	})

	Register(Profile{
		Name:               Linea,
		ChainID:            59144,
		Registry:           "0x50130b669B28C339991d8676FA73CF122a121267",
		PublicResolver:     "0x86c5AED9F27837074612288610fB98ccC1733126",
		NameWrapper:        "0xA53cca02F98D590819141Aa85C891e2Af713C223",
		ReverseRegistrar:   "0x08D3fF6E65f680844fd2465393ff6f0d742b67D5",
		L2ReverseRegistrar: l2ReverseMainnet,
		CoinType:           2147542792,
		Settlement:         Mainnet,
	})

	Register(Profile{
		Name:               LineaSepolia,
		ChainID:            59141,
		Registry:           "0x5B2636F0f2137B4aE722C01dd5122D7d3e9541f7",
		PublicResolver:     "0xA2008916Ed2d7ED0Ecd747a8a5309267e42cf1f1",
		NameWrapper:        "0xF127De9E039a789806fEd4C6b1C0f3aFfeA9425e",
		ReverseRegistrar:   "0x4aAA964D8EB65508ca3DA3b0A3C060c16059E613",
		L2ReverseRegistrar: l2ReverseTestnet,
		CoinType:           2147542789,
		Settlement:         Sepolia,
	})

	Register(Profile{
		Name:               Base,
		ChainID:            8453,
		Registry:           "0xB94704422c2a1E396835A571837Aa5AE53285a95",
		PublicResolver:     "0xC6d566A56A1aFf6508b41f6c90ff131615583BCD",
		ReverseRegistrar:   "0x79EA96012eEa67A83431F1701B3dFf7e37F9E282",
		L2ReverseRegistrar: l2ReverseMainnet,
		CoinType:           2147492101,
		Settlement:         Mainnet,
	})

	Register(Profile{
		Name:               BaseSepolia,
		ChainID:            84532,
		Registry:           "0x1493b2567056c2181630115660963E13A8E32735",
		PublicResolver:     "0x6533C94869D28fAA8dF77cc63f9e2b2D6Cf77eBA",
		ReverseRegistrar:   "0xa0A8401ECF248a9375a0a71C4dedc263dA18dCd7",
		L2ReverseRegistrar: l2ReverseTestnet,
		CoinType:           2147568180,
		Settlement:         Sepolia,
	})

	// Rollups below carry no ENS registry of their own beyond the shared
	// registry address and only expose the L2 reverse registrar.
	Register(Profile{
		Name:               Optimism,
		ChainID:            10,
		Registry:           ensRegistry,
		L2ReverseRegistrar: l2ReverseMainnet,
		CoinType:           2147483658,
		Settlement:         Mainnet,
	})

	Register(Profile{
		Name:               OptimismSepolia,
		ChainID:            11155420,
		Registry:           ensRegistry,
		L2ReverseRegistrar: l2ReverseTestnet,
		CoinType:           2158639068,
		Settlement:         Sepolia,
	})

	Register(Profile{
		Name:               Arbitrum,
		ChainID:            42161,
		Registry:           ensRegistry,
		L2ReverseRegistrar: l2ReverseMainnet,
		CoinType:           2147525809,
		Settlement:         Mainnet,
	})

	Register(Profile{
		Name:               ArbitrumSepolia,
		ChainID:            421614,
		Registry:           ensRegistry,
		L2ReverseRegistrar: l2ReverseTestnet,
		CoinType:           2147905262,
		Settlement:         Sepolia,
	})

	Register(Profile{
		Name:               Scroll,
		ChainID:            534352,
		Registry:           ensRegistry,
		L2ReverseRegistrar: l2ReverseMainnet,
		CoinType:           2148018000,
		Settlement:         Mainnet,
	})

	Register(Profile{
		Name:               ScrollSepolia,
		ChainID:            534351,
		Registry:           ensRegistry,
		L2ReverseRegistrar: l2ReverseTestnet,
		CoinType:           2148017999,
		Settlement:         Sepolia,
	})

	// Addresses are filled in by whoever deploys ENS locally.
	Register(Profile{
		Name:     Localhost,
		ChainID:  31337,
		Registry: "0x0000000000000000000000000000000000000000",
		CoinType: ethCoinType,
	})
}
