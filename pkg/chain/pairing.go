package chain

// Paired is the outcome of classifying a user supplied chain identifier.
type Paired struct {
	L1 string
	// L2 is empty when no mirroring is required
	L2 string
	// Fallback is set when the identifier was not recognised and was passed
	// through as an L1 without pairing.
	Fallback bool
}

// HasL2 reports whether reverse resolution must be mirrored onto an L2.
func (p Paired) HasL2() bool {
	return p.L2 != ""
}

var pairings = map[string]Paired{
	Mainnet:   {L1: Mainnet},
	Sepolia:   {L1: Sepolia},
	Localhost: {L1: Localhost},

	Linea:    {L1: Mainnet, L2: Linea},
	Base:     {L1: Mainnet, L2: Base},
	Optimism: {L1: Mainnet, L2: Optimism},
	Arbitrum: {L1: Mainnet, L2: Arbitrum},
	Scroll:   {L1: Mainnet, L2: Scroll},

	LineaSepolia:    {L1: Sepolia, L2: LineaSepolia},
	BaseSepolia:     {L1: Sepolia, L2: BaseSepolia},
	OptimismSepolia: {L1: Sepolia, L2: OptimismSepolia},
	ArbitrumSepolia: {L1: Sepolia, L2: ArbitrumSepolia},
	ScrollSepolia:   {L1: Sepolia, L2: ScrollSepolia},
}

// ResolvePairedChains maps a chain identifier onto the L1 that holds the ENS
// records and the optional L2 that needs a mirrored reverse record.
// Unknown identifiers are returned as a pure L1 with Fallback set; the
// subsequent GetProfile call is what rejects them.
func ResolvePairedChains(id string) Paired {
	if p, ok := pairings[id]; ok {
		return p
	}
	return Paired{L1: id, Fallback: true}
}
