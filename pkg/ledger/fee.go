package ledger

import (
	"github.com/holiman/uint256"
)

// DefaultFeeDecimals is FEE_DECIMALS of the public ledger.
const DefaultFeeDecimals = 6

// FeeScale returns the fee-rate denominator 10^feeDecimals * 100, so a rate
// equal to the scale is a 100% fee and 10^feeDecimals is 1%.
func FeeScale(feeDecimals uint8) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(feeDecimals)))
	return scale.Mul(scale, uint256.NewInt(100))
}

// ComputeFee returns floor(amount * rate / scale). rate must not exceed scale,
// so the fee never exceeds amount and the product cannot overflow the result.
func ComputeFee(amount, rate, scale *uint256.Int) *uint256.Int {
	if amount.IsZero() || rate.IsZero() {
		return new(uint256.Int)
	}
	fee, _ := new(uint256.Int).MulDivOverflow(amount, rate, scale)
	return fee
}

// Transfer describes the effect of a fee-applying transfer.
type Transfer struct {
	Amount *uint256.Int
	// Fee is the part of Amount credited to the fee collector.
	Fee *uint256.Int
	// Received is Amount - Fee, credited to the recipient.
	Received *uint256.Int
}
