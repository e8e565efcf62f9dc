package ledger

import (
	"errors"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
)

var (
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInsufficientAllowance   = errors.New("insufficient allowance")
	ErrCallerNotBridge         = errors.New("caller is not the bridge")
	ErrCallerNotAdmin          = errors.New("caller is not an admin")
	ErrBridgeAddressAlreadySet = errors.New("bridge address already set")
	ErrSameBridgeAddress       = errors.New("bridge address unchanged")
	ErrFeeRateTooHigh          = errors.New("fee rate exceeds fee scale")
	ErrZeroAddress             = errors.New("zero address")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrSupplyOverflow          = errors.New("total supply overflow")
)

func insufficientBalance(msg string) error {
	return apperrors.PreconditionError(ErrInsufficientBalance, apperrors.ReasonInsufficientBalance, msg)
}

func insufficientAllowance() error {
	return apperrors.PreconditionError(ErrInsufficientAllowance, apperrors.ReasonInsufficientAllowance,
		"ERC20: transfer amount exceeds allowance")
}

func callerNotBridge() error {
	return apperrors.ForbiddenError(ErrCallerNotBridge, apperrors.ReasonCallerNotBridge,
		"Only Bridge can call this function")
}

func callerNotAdmin(msg string) error {
	return apperrors.ForbiddenError(ErrCallerNotAdmin, apperrors.ReasonCallerNotAdmin, msg)
}

func zeroAddress(msg string) error {
	return apperrors.New(apperrors.CategoryDataError, apperrors.ReasonInvalidRequest, ErrZeroAddress, msg)
}

func invalidAmount(msg string) error {
	return apperrors.New(apperrors.CategoryDataError, apperrors.ReasonInvalidRequest, ErrInvalidAmount, msg)
}
