package adapter

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// swapAdapterABIJSON is the uniform interface every adapter contract exposes,
// grounded in tycho-simulation's Solidity ISwapAdapter: prices are returned
// as (numerator, denominator) fractions since Solidity has no floating
// point, capabilities as a uint8 array decoded via package capability, and
// getLimits as a two-element amount array (sell_limit, buy_limit).
const swapAdapterABIJSON = `[
	{
		"name": "price",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "poolId", "type": "bytes32"},
			{"name": "sellToken", "type": "address"},
			{"name": "buyToken", "type": "address"},
			{"name": "specifiedAmounts", "type": "uint256[]"}
		],
		"outputs": [
			{
				"name": "prices",
				"type": "tuple[]",
				"components": [
					{"name": "numerator", "type": "uint256"},
					{"name": "denominator", "type": "uint256"}
				]
			}
		]
	},
	{
		"name": "swap",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "poolId", "type": "bytes32"},
			{"name": "sellToken", "type": "address"},
			{"name": "buyToken", "type": "address"},
			{"name": "isBuy", "type": "bool"},
			{"name": "specifiedAmount", "type": "uint256"}
		],
		"outputs": [
			{
				"name": "trade",
				"type": "tuple",
				"components": [
					{"name": "calculatedAmount", "type": "uint256"},
					{"name": "gasUsed", "type": "uint256"},
					{"name": "priceNumerator", "type": "uint256"},
					{"name": "priceDenominator", "type": "uint256"}
				]
			}
		]
	},
	{
		"name": "getLimits",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "poolId", "type": "bytes32"},
			{"name": "sellToken", "type": "address"},
			{"name": "buyToken", "type": "address"}
		],
		"outputs": [
			{"name": "limits", "type": "uint256[]"}
		]
	},
	{
		"name": "getCapabilities",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "poolId", "type": "bytes32"},
			{"name": "sellToken", "type": "address"},
			{"name": "buyToken", "type": "address"}
		],
		"outputs": [
			{"name": "capabilities", "type": "uint8[]"}
		]
	}
]`

// ParsedABI is parsed once at package init via go-ethereum's standard ABI
// codec — the same accounts/abi.JSON entry point abigen-generated bindings
// use, not a hand-rolled encoder.
var ParsedABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(swapAdapterABIJSON))
	if err != nil {
		panic("adapter: invalid embedded ABI: " + err.Error())
	}
	ParsedABI = parsed
}
