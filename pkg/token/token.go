package token

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ID identifies a ledger instance (e.g. "gogo" for the private token, "gold" for the public one).
type ID string

// RoleID is the fee role an account holds on a ledger.
type RoleID uint32

// DefaultRole is held by every account that was never granted a role.
const DefaultRole RoleID = 0

// Settings holds the admin-managed, per-ledger singletons.
type Settings struct {
	// BridgeAddress is write-once; the zero address means unbound.
	BridgeAddress common.Address
	// FeeCollector receives transfer fees; the zero address disables fees.
	FeeCollector common.Address
}

// HasBridge reports whether a bridge address has been bound.
func (s Settings) HasBridge() bool {
	return s.BridgeAddress != (common.Address{})
}

// HasFeeCollector reports whether transfer fees are being collected.
func (s Settings) HasFeeCollector() bool {
	return s.FeeCollector != (common.Address{})
}

// Metadata describes a ledger for display purposes.
type Metadata struct {
	ID          ID
	Name        string
	Symbol      string
	Decimals    uint8
	FeeDecimals uint8
}

// ToUnits converts an amount in base units into whole-token units using the ledger decimals.
func ToUnits(amount *uint256.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals))
}

// FormatUnits renders an amount in whole-token units, e.g. "1000.5".
func FormatUnits(amount *uint256.Int, decimals uint8) string {
	return ToUnits(amount, decimals).String()
}

var (
	// ErrAmountOverflow is returned by ParseAmount for values that do not fit in 256 bits.
	ErrAmountOverflow = errors.New("amount exceeds 256 bits")
	// ErrInvalidHexAmount is returned by ParseAmount for malformed hex input.
	ErrInvalidHexAmount = errors.New("invalid hex amount")
)

// ParseAmount parses a base-unit amount given either in decimal or as 0x-prefixed hex.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, ok := new(big.Int).SetString(s[2:], 16)
		if !ok || b.Sign() < 0 {
			return nil, ErrInvalidHexAmount
		}
		v, overflow := uint256.FromBig(b)
		if overflow {
			return nil, ErrAmountOverflow
		}
		return v, nil
	}
	return uint256.FromDecimal(s)
}
