package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxBalance is U256::MAX / 2, the simulation upper bound used for every
// synthetic token holding this package installs.
var MaxBalance = new(uint256.Int).Rsh(new(uint256.Int).Not(uint256.NewInt(0)), 1)

// identityPrecompile is the address of the EVM's identity precompile,
// pre-installed as a zero-balance account so interpreter reads against it
// never report a missing account.
var identityPrecompile = common.HexToAddress("0x0000000000000000000000000000000000000004")

// nullAddress is the zero address, pre-installed for the same reason.
var nullAddress = common.Address{}
