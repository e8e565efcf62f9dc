package service

import (
	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
)

// Stage is a checkpoint of a bridge operation. Operations move strictly
// forward through the stages; a rejection at any stage discards everything
// done by the earlier ones.
type Stage int

const (
	StageStart Stage = iota
	StageDirectionChecked
	StageSignatureVerified
	StageNonceConsumed
	StageLedgerMutated
	StageEventEmitted
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageDirectionChecked:
		return "direction_checked"
	case StageSignatureVerified:
		return "signature_verified"
	case StageNonceConsumed:
		return "nonce_consumed"
	case StageLedgerMutated:
		return "ledger_mutated"
	case StageEventEmitted:
		return "event_emitted"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Rejection is returned by a failed operation. Stage is the last checkpoint
// the operation reached before failing.
type Rejection struct {
	Stage Stage
	Err   error
}

func (r *Rejection) Error() string {
	return r.Err.Error()
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Reason returns the rejection reason code.
func (r *Rejection) Reason() string {
	return apperrors.ReasonOf(r.Err)
}
