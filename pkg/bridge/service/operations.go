package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/ledger"
	"github.com/chainsafe/gogo-bridge/pkg/store"
)

// ErrUnsupportedOperation is returned when an operation is submitted to the
// bridge instance that does not expose it.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// mutationFunc applies an operation to the ledger and returns the transfer
// fee it charged, nil when none applies.
type mutationFunc func(ctx context.Context, tx store.Tx, caller common.Address, req *bridge.Request) (*uint256.Int, error)

func (c *Controller) mutation(op bridge.Operation) (mutationFunc, error) {
	if op.Side() != c.side {
		return nil, apperrors.NotSupportedError(ErrUnsupportedOperation,
			fmt.Sprintf("%s is not exposed by the %s bridge", op, c.side))
	}
	switch op {
	case bridge.OpSendToPublicBridge:
		return c.lockInCustody, nil
	case bridge.OpReceiveFromPublicBridge:
		return c.releaseFromCustody, nil
	case bridge.OpReceiveFromPrivateBridge:
		return c.mint, nil
	case bridge.OpSendToPrivateBridge:
		return c.burn, nil
	default:
		return nil, apperrors.NotSupportedError(ErrUnsupportedOperation, fmt.Sprintf("unknown operation %q", op))
	}
}

// lockInCustody moves the user's tokens into the bridge account. The user
// must have approved the bridge for at least the amount.
func (c *Controller) lockInCustody(ctx context.Context, tx store.Tx, _ common.Address, req *bridge.Request) (*uint256.Int, error) {
	res, err := c.ledger.TransferFrom(ctx, tx, c.address, req.UserAddress, c.address, req.Amount)
	if err != nil {
		return nil, err
	}
	return res.Fee, nil
}

// releaseFromCustody returns tokens held by the bridge account to the user.
func (c *Controller) releaseFromCustody(ctx context.Context, tx store.Tx, _ common.Address, req *bridge.Request) (*uint256.Int, error) {
	res, err := c.ledger.Transfer(ctx, tx, c.address, req.UserAddress, req.Amount)
	if err != nil {
		return nil, err
	}
	return res.Fee, nil
}

func (c *Controller) mint(ctx context.Context, tx store.Tx, _ common.Address, req *bridge.Request) (*uint256.Int, error) {
	return nil, c.ledger.Mint(ctx, tx, c.address, req.UserAddress, req.Amount)
}

// burn destroys the user's tokens. A caller other than the user needs an
// allowance from the user to the bridge, which is spent.
func (c *Controller) burn(ctx context.Context, tx store.Tx, caller common.Address, req *bridge.Request) (*uint256.Int, error) {
	if caller != req.UserAddress {
		err := c.ledger.SpendAllowance(ctx, tx, req.UserAddress, c.address, req.Amount)
		if errors.Is(err, ledger.ErrInsufficientAllowance) {
			return nil, apperrors.PreconditionError(ledger.ErrInsufficientAllowance, apperrors.ReasonInsufficientAllowance,
				"You can burn only your balance")
		}
		if err != nil {
			return nil, err
		}
	}
	return nil, c.ledger.Burn(ctx, tx, c.address, req.UserAddress, req.Amount)
}
