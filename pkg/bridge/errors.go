package bridge

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
)

var (
	// ErrInvalidDirection is returned when the request direction does not match the operation.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrInvalidRequest is returned for structurally invalid requests.
	ErrInvalidRequest = errors.New("invalid bridge request")
)

// InvalidDirectionError is the rejection for a request whose direction is not want.
func InvalidDirectionError(want Direction) error {
	msg := "direction must be false"
	if want == ToPrivate {
		msg = "direction must be true"
	}
	return apperrors.New(apperrors.CategoryDataError, apperrors.ReasonInvalidDirection, ErrInvalidDirection, msg)
}

// Validate checks that the request carries every field of the signed message.
func (r *Request) Validate() error {
	switch {
	case r == nil:
		return apperrors.BadRequestError(ErrInvalidRequest, "request is required")
	case r.Amount == nil:
		return apperrors.BadRequestError(ErrInvalidRequest, "amount is required")
	case r.Nonce == nil:
		return apperrors.BadRequestError(ErrInvalidRequest, "nonce is required")
	case r.UserAddress == (common.Address{}):
		return apperrors.BadRequestError(ErrInvalidRequest, "user address must not be the zero address")
	}
	return nil
}
