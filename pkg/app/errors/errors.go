// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError means the operation succeeded.
	CategoryNoError Category = iota
	// CategoryDataError The client sends some invalid data in the request,
	// for example, a malformed amount or a zero address.
	CategoryDataError
	// CategoryUnauthorized The request is not authorized by a trusted signer
	CategoryUnauthorized
	// CategoryForbidden The caller is known but lacks the privilege (admin, bridge)
	CategoryForbidden
	// CategoryResourceNotFound The client is attempting to access a resource that does not exist
	CategoryResourceNotFound
	// CategoryNotSupported The requested operation is not exposed by this instance
	CategoryNotSupported
	// CategoryDataConflict The request conflicts with existing state (replayed nonce, write-once field)
	CategoryDataConflict
	// CategoryPreconditionFailed The state does not allow the operation (balance, allowance)
	CategoryPreconditionFailed
	// CategoryDependencyFailure A dependent service is throwing errors
	CategoryDependencyFailure
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryNoError:
		return "CategoryNoError"
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryForbidden:
		return "CategoryForbidden"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryNotSupported:
		return "CategoryNotSupported"
	case CategoryDataConflict:
		return "CategoryDataConflict"
	case CategoryPreconditionFailed:
		return "CategoryPreconditionFailed"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	default:
		return "CategoryGeneralError"
	}
}

// Reason codes surfaced to callers. They are stable and part of the API.
const (
	ReasonInvalidRequest          = "InvalidRequest"
	ReasonInvalidDirection        = "InvalidDirection"
	ReasonUnauthorizedSigner      = "UnauthorizedSigner"
	ReasonNonceReplay             = "NonceReplay"
	ReasonRequestReplay           = "RequestReplay"
	ReasonRequestExpired          = "RequestExpired"
	ReasonInsufficientAllowance   = "InsufficientAllowance"
	ReasonInsufficientBalance     = "InsufficientBalance"
	ReasonCallerNotBridge         = "CallerNotBridge"
	ReasonCallerNotAdmin          = "CallerNotAdmin"
	ReasonBridgeAddressAlreadySet = "BridgeAddressAlreadySet"
	ReasonSameBridgeAddress       = "SameBridgeAddress"
	ReasonFeeRateTooHigh          = "FeeRateTooHigh"
	ReasonUnsupportedOperation    = "UnsupportedOperation"
	ReasonNotFound                = "NotFound"
	ReasonInternal                = "Internal"
)

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	// Reason is the machine readable rejection code.
	Reason  string
	Message string
	Err     error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil && err.Err.Error() != err.Message {
		return err.Message + ": " + err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// New builds a ServiceError. err is the sentinel or cause kept for errors.Is
// and logging, message is what the caller sees.
func New(cat Category, reason string, err error, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	return &ServiceError{
		Category: cat,
		Reason:   reason,
		Message:  message,
		Err:      err,
	}
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// ReasonOf returns the reason code carried by err, or ReasonInternal when err
// is not a ServiceError.
func ReasonOf(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Reason != "" {
		return svcErr.Reason
	}
	return ReasonInternal
}

// IsInternalError checks that provided error is a Internal system error
func IsInternalError(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && (svcErr.Category < CategoryDependencyFailure) {
		return false
	}
	return true
}

// GeneralError returns a general service error
// this error mesage sent to the user is "Internal Server Error"
// the error passed is logged in the logger
func GeneralError(err error) error {
	return New(CategoryGeneralError, ReasonInternal, err, "Internal Server Error")
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	return New(CategoryDataError, ReasonInvalidRequest, err, message)
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	return New(CategoryResourceNotFound, ReasonNotFound, err, message)
}

// NotSupportedError returns an error with category NotSupported
func NotSupportedError(err error, message string) error {
	return New(CategoryNotSupported, ReasonUnsupportedOperation, err, message)
}

// ForbiddenError returns an error with category CategoryForbidden and the given reason
func ForbiddenError(err error, reason, message string) error {
	return New(CategoryForbidden, reason, err, message)
}

// UnAuthorizedError returns an error with category CategoryUnauthorized and the given reason
func UnAuthorizedError(err error, reason, message string) error {
	return New(CategoryUnauthorized, reason, err, message)
}

// ConflictError returns an error with category CategoryDataConflict and the given reason
func ConflictError(err error, reason, message string) error {
	return New(CategoryDataConflict, reason, err, message)
}

// PreconditionError returns an error with category CategoryPreconditionFailed and the given reason
func PreconditionError(err error, reason, message string) error {
	return New(CategoryPreconditionFailed, reason, err, message)
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryForbidden:
		return http.StatusForbidden
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryNotSupported:
		return http.StatusMethodNotAllowed
	case CategoryDataConflict:
		return http.StatusConflict
	case CategoryPreconditionFailed:
		return http.StatusUnprocessableEntity
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
