package types

// Network names a ledger the bridge can talk to.
type Network string

const (
	// EVM Networks
	NetworkEthereum    Network = "ethereum"
	NetworkSepolia     Network = "sepolia" // testnet
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
	NetworkEVMLocal    Network = "evm-local"

	// Solana Networks
	NetworkSolanaMainnet Network = "solana-mainnet"
	NetworkSolanaDevnet  Network = "solana-devnet" // testnet

	// In-process simulated ledger
	NetworkSimulated Network = "simulated"
)

// ChainFamily classifies a network into a blockchain family.
type ChainFamily string

const (
	ChainEVM       ChainFamily = "evm"
	ChainSolana    ChainFamily = "solana"
	ChainSimulated ChainFamily = "simulated"
	ChainUnknown   ChainFamily = "unknown"
)

// ChainRole is the part a ledger plays in a swap.
type ChainRole string

const (
	RoleInitiator    ChainRole = "initiator"
	RoleCounterparty ChainRole = "counterparty"
)

func (r ChainRole) String() string {
	return string(r)
}

// Helper functions for network classification
func (n Network) IsEVM() bool {
	switch n {
	case NetworkEthereum, NetworkSepolia, NetworkBase, NetworkBaseSepolia,
		NetworkPolygon, NetworkPolygonAmoy, NetworkEVMLocal:
		return true
	}
	return false
}

func (n Network) IsSolana() bool {
	return n == NetworkSolanaMainnet || n == NetworkSolanaDevnet
}

func (n Network) IsSimulated() bool {
	return n == NetworkSimulated
}

func (n Network) IsTestnet() bool {
	switch n {
	case NetworkSepolia, NetworkBaseSepolia, NetworkPolygonAmoy, NetworkSolanaDevnet,
		NetworkEVMLocal, NetworkSimulated:
		return true
	}
	return false
}

func (n Network) Family() ChainFamily {
	switch {
	case n.IsEVM():
		return ChainEVM
	case n.IsSolana():
		return ChainSolana
	case n.IsSimulated():
		return ChainSimulated
	default:
		return ChainUnknown
	}
}

func (n Network) String() string {
	return string(n)
}
