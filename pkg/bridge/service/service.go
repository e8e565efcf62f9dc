// Package service implements the bridge controllers. A controller accepts
// oracle-signed requests, consumes their nonce, mutates its ledger and records
// an event, all inside one executor transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/executor"
	"github.com/chainsafe/gogo-bridge/pkg/ledger"
	"github.com/chainsafe/gogo-bridge/pkg/nonce"
	"github.com/chainsafe/gogo-bridge/pkg/signature"
	"github.com/chainsafe/gogo-bridge/pkg/store"
)

// DefaultEventsLimit is used when Events is called without a positive limit.
const DefaultEventsLimit = 100

// Service defines the interface of a bridge controller.
type Service interface {
	// Side returns which bridge instance this is.
	Side() bridge.Side
	// Address returns the bridge's own account on its ledger.
	Address() common.Address
	// Submit runs one of the bridge operations on behalf of caller.
	Submit(ctx context.Context, op bridge.Operation, caller common.Address, req *bridge.Request) (*bridge.Event, error)
	// FormSigningData returns the hash an oracle signs for the request fields.
	FormSigningData(userAddress common.Address, amount, nonce *uint256.Int, direction bridge.Direction) common.Hash
	// NonceUsed reports whether nonce was consumed for direction.
	NonceUsed(ctx context.Context, direction bridge.Direction, nonce *uint256.Int) (bool, error)
	// AddOracle trusts a new signer. Adding a trusted signer again is a no-op.
	AddOracle(ctx context.Context, caller, oracle common.Address) (bool, error)
	// Oracles lists the trusted signers in the order they were added.
	Oracles(ctx context.Context) ([]common.Address, error)
	// Events lists the most recent events, newest first.
	Events(ctx context.Context, limit int) ([]*bridge.Event, error)
}

// LedgerObserver is told about ledger changes made by committed bridge
// operations.
type LedgerObserver interface {
	RecordSupply(supply *uint256.Int)
	RecordFee(fee *uint256.Int)
}

// Controller is one bridge instance.
type Controller struct {
	side     bridge.Side
	address  common.Address
	exec     *executor.Executor
	ledger   *ledger.Ledger
	nonces   *nonce.Registry
	verifier *signature.Verifier
	admins   ledger.AdminPolicy
	observer LedgerObserver
	now      func() time.Time
}

var _ Service = (*Controller)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithRecoverer replaces the default secp256k1 signer recovery.
func WithRecoverer(r signature.Recoverer) Option {
	return func(c *Controller) { c.verifier = signature.NewVerifier(r) }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLedgerObserver reports supply and fees after each committed operation.
func WithLedgerObserver(o LedgerObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// New creates a controller for side. address is the bridge's own account:
// the custody account on the private ledger, the minter on the public one.
func New(
	side bridge.Side,
	address common.Address,
	exec *executor.Executor,
	l *ledger.Ledger,
	admins ledger.AdminPolicy,
	opts ...Option,
) *Controller {
	c := &Controller{
		side:     side,
		address:  address,
		exec:     exec,
		ledger:   l,
		nonces:   nonce.NewRegistry(side),
		verifier: signature.NewVerifier(nil),
		admins:   admins,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Side() bridge.Side       { return c.side }
func (c *Controller) Address() common.Address { return c.address }

// Ledger returns the ledger this controller mutates.
func (c *Controller) Ledger() *ledger.Ledger { return c.ledger }

func (c *Controller) FormSigningData(userAddress common.Address, amount, n *uint256.Int, direction bridge.Direction) common.Hash {
	return signature.SigningData(userAddress, amount, n, direction)
}

// Submit implements Service.
func (c *Controller) Submit(ctx context.Context, op bridge.Operation, caller common.Address, req *bridge.Request) (*bridge.Event, error) {
	mutate, err := c.mutation(op)
	if err != nil {
		return nil, &Rejection{Stage: StageStart, Err: err}
	}

	var (
		event  *bridge.Event
		fee    *uint256.Int
		supply *uint256.Int
	)
	stage := StageStart
	err = c.exec.Execute(ctx, func(ctx context.Context, tx store.Tx) error {
		stage = StageStart
		if req != nil && req.Direction != op.Direction() {
			return bridge.InvalidDirectionError(op.Direction())
		}
		if err := req.Validate(); err != nil {
			return err
		}
		stage = StageDirectionChecked

		if err := c.verify(ctx, tx, req); err != nil {
			return err
		}
		stage = StageSignatureVerified

		if err := c.consume(ctx, tx, req); err != nil {
			return err
		}
		stage = StageNonceConsumed

		var err error
		if fee, err = mutate(ctx, tx, caller, req); err != nil {
			return err
		}
		stage = StageLedgerMutated
		if c.observer != nil {
			if supply, err = c.ledger.TotalSupply(ctx, tx); err != nil {
				return fmt.Errorf("read total supply: %w", err)
			}
		}

		event = &bridge.Event{
			ID:          uuid.NewString(),
			Bridge:      c.side,
			Type:        op.EventType(),
			UserAddress: req.UserAddress,
			Amount:      req.Amount.Clone(),
			Nonce:       req.Nonce.Clone(),
			Direction:   req.Direction,
			Caller:      caller,
			CreatedAt:   c.now().UTC(),
		}
		if err := tx.AppendEvent(ctx, event); err != nil {
			return fmt.Errorf("record %s event: %w", event.Type, err)
		}
		stage = StageEventEmitted
		return nil
	})
	if err != nil {
		return nil, &Rejection{Stage: stage, Err: err}
	}

	if c.observer != nil {
		c.observer.RecordSupply(supply)
		if fee != nil && !fee.IsZero() {
			c.observer.RecordFee(fee)
		}
	}
	return event, nil
}

// verify recovers the signer and checks it is a trusted oracle.
func (c *Controller) verify(ctx context.Context, tx store.BridgeTx, req *bridge.Request) error {
	signer, err := c.verifier.Signer(req)
	if err != nil {
		return c.unauthorizedSigner(err)
	}

	oracles, err := tx.Oracles(ctx, c.side)
	if err != nil {
		return fmt.Errorf("load oracles: %w", err)
	}
	for _, o := range oracles {
		if o == signer {
			return nil
		}
	}
	return c.unauthorizedSigner(fmt.Errorf("%w: %s", signature.ErrSignerMismatch, signer.Hex()))
}

func (c *Controller) consume(ctx context.Context, tx store.BridgeTx, req *bridge.Request) error {
	err := c.nonces.Consume(ctx, tx, req.Direction, req.Nonce)
	if errors.Is(err, nonce.ErrNonceReplay) {
		set := "toPublicNonces"
		if req.Direction == bridge.ToPrivate {
			set = "toPrivateNonces"
		}
		msg := "nonce in " + set + " already exist"
		if c.side == bridge.SidePublic {
			msg = "Provided nonce already exists in " + set
		}
		return apperrors.ConflictError(err, apperrors.ReasonNonceReplay, msg)
	}
	return err
}

// unauthorizedSigner wraps err with the revert message of the controller's side.
func (c *Controller) unauthorizedSigner(err error) error {
	msg := "recovered address is not gogoService address"
	if c.side == bridge.SidePublic {
		msg = "Recovered address is not gogoService address"
	}
	return apperrors.UnAuthorizedError(err, apperrors.ReasonUnauthorizedSigner, msg)
}

// NonceUsed implements Service. It backs toPublicNonces and toPrivateNonces.
func (c *Controller) NonceUsed(ctx context.Context, direction bridge.Direction, n *uint256.Int) (bool, error) {
	if n == nil {
		return false, apperrors.BadRequestError(bridge.ErrInvalidRequest, "nonce is required")
	}
	var used bool
	err := c.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		used, err = c.nonces.IsUsed(ctx, tx, direction, n)
		return err
	})
	return used, err
}

// AddOracle implements Service. Only ledger admins may add oracles; the
// oracle set is append-only.
func (c *Controller) AddOracle(ctx context.Context, caller, oracle common.Address) (bool, error) {
	if caller == (common.Address{}) || !c.admins.IsAdmin(caller) {
		return false, apperrors.ForbiddenError(ledger.ErrCallerNotAdmin, apperrors.ReasonCallerNotAdmin, c.admins.DeniedMessage())
	}
	if oracle == (common.Address{}) {
		return false, apperrors.BadRequestError(ledger.ErrZeroAddress, "oracle must not be the zero address")
	}

	var added bool
	err := c.exec.Execute(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		added, err = tx.AddOracle(ctx, c.side, oracle)
		return err
	})
	return added, err
}

// Oracles implements Service.
func (c *Controller) Oracles(ctx context.Context) ([]common.Address, error) {
	var oracles []common.Address
	err := c.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		oracles, err = tx.Oracles(ctx, c.side)
		return err
	})
	return oracles, err
}

// Events implements Service.
func (c *Controller) Events(ctx context.Context, limit int) ([]*bridge.Event, error) {
	if limit <= 0 {
		limit = DefaultEventsLimit
	}
	var events []*bridge.Event
	err := c.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		events, err = tx.Events(ctx, c.side, limit)
		return err
	})
	return events, err
}
