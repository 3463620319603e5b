package types

// Network identifies the EVM network payments settle on.
type Network string

const (
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
)

// NativeDecimals is the fixed decimal exponent of the native coin on
// every supported network.
const NativeDecimals = 18

// ChainID returns the canonical chain id for the network, or 0 if the
// network is unknown.
func (n Network) ChainID() uint64 {
	switch n {
	case NetworkPolygon:
		return 137
	case NetworkPolygonAmoy:
		return 80002
	case NetworkBase:
		return 8453
	case NetworkBaseSepolia:
		return 84532
	}
	return 0
}

func (n Network) IsTestnet() bool {
	return n == NetworkPolygonAmoy || n == NetworkBaseSepolia
}

func (n Network) String() string {
	return string(n)
}
