package types

// Network represents supported Starknet networks
type Network string

const (
	NetworkMainnet Network = "starknet"
	NetworkSepolia Network = "sepolia"
	NetworkDevnet  Network = "devnet"
)

// Starknet chain ids as returned by starknet_chainId (shortstring-encoded felts).
const (
	ChainIDMainnet = "0x534e5f4d41494e"       // SN_MAIN
	ChainIDSepolia = "0x534e5f5345504f4c4941" // SN_SEPOLIA
)

// NetworkFromChainID maps a chain id to its network name. Anything not
// recognized is classified as a devnet rather than rejected, so locally run
// chains keep working.
func NetworkFromChainID(chainID string) Network {
	switch chainID {
	case ChainIDMainnet:
		return NetworkMainnet
	case ChainIDSepolia:
		return NetworkSepolia
	default:
		return NetworkDevnet
	}
}

func (n Network) IsTestnet() bool {
	return n == NetworkSepolia || n == NetworkDevnet
}

func (n Network) String() string {
	return string(n)
}
