package chainmeta

import "strings"

// Metadata describes one supported chain's native asset.
type Metadata struct {
	AssetID   string
	NetworkID string
	Symbol    string
	Decimals  int32
	Name      string
}

// Asset and network identifiers follow the CAIP-2/CAIP-19 conventions so the
// balance path and the transaction path agree on asset identity.
var registry = map[string]Metadata{
	"eth": {
		AssetID:   "eip155:1/slip44:60",
		NetworkID: "eip155:1",
		Symbol:    "ETH",
		Decimals:  18,
		Name:      "Ethereum",
	},
	"btc": {
		AssetID:   "bip122:000000000019d6689c085ae165831e93/slip44:0",
		NetworkID: "bip122:000000000019d6689c085ae165831e93",
		Symbol:    "BTC",
		Decimals:  8,
		Name:      "Bitcoin",
	},
	"sol": {
		AssetID:   "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp/slip44:501",
		NetworkID: "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
		Symbol:    "SOL",
		Decimals:  9,
		Name:      "Solana",
	},
	"pol": {
		AssetID:   "eip155:137/slip44:966",
		NetworkID: "eip155:137",
		Symbol:    "POL",
		Decimals:  18,
		Name:      "Polygon",
	},
	"bnb": {
		AssetID:   "eip155:56/slip44:714",
		NetworkID: "eip155:56",
		Symbol:    "BNB",
		Decimals:  18,
		Name:      "BNB Chain",
	},
	"ltc": {
		AssetID:   "bip122:12a765e31ffd4059bada1e25190f6e98/slip44:2",
		NetworkID: "bip122:12a765e31ffd4059bada1e25190f6e98",
		Symbol:    "LTC",
		Decimals:  8,
		Name:      "Litecoin",
	},
	"doge": {
		AssetID:   "bip122:1a91e3dace36e2be3bf030a65679fe82/slip44:3",
		NetworkID: "bip122:1a91e3dace36e2be3bf030a65679fe82",
		Symbol:    "DOGE",
		Decimals:  8,
		Name:      "Dogecoin",
	},
}

// Lookup resolves a chain symbol to its metadata. Case-insensitive.
func Lookup(symbol string) (Metadata, bool) {
	meta, ok := registry[strings.ToLower(strings.TrimSpace(symbol))]
	return meta, ok
}

// Symbols lists the supported chain symbols.
func Symbols() []string {
	out := make([]string, 0, len(registry))
	for _, meta := range registry {
		out = append(out, meta.Symbol)
	}
	return out
}
