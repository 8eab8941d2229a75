package utils

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidAddress reports whether s is a syntactically valid hex address for
// the EVM addressing scheme.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// HexToAddress converts a hex string to a typed address for ABI packing.
func HexToAddress(s string) common.Address {
	return common.HexToAddress(s)
}

// erc20TransferMethodID is the 4-byte selector of transfer(address,uint256).
var erc20TransferMethodID = common.Hex2Bytes("a9059cbb")

// PackERC20Transfer builds the calldata for an ERC-20 transfer, used for
// gas estimation of token transfers.
func PackERC20Transfer(to string, amount *big.Int) []byte {
	paddedTo := common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)
	paddedAmount := common.LeftPadBytes(amount.Bytes(), 32)
	data := make([]byte, 0, 4+64)
	data = append(data, erc20TransferMethodID...)
	data = append(data, paddedTo...)
	data = append(data, paddedAmount...)
	return data
}
