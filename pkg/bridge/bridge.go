// Package bridge holds the domain model shared by both bridge controllers.
package bridge

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Direction distinguishes the two flows of the bridge.
// It is the boolean that is part of the signed message.
type Direction bool

const (
	// ToPublic moves value from the private ledger into the public ledger (false on the wire).
	ToPublic Direction = false
	// ToPrivate moves value from the public ledger back into the private ledger (true on the wire).
	ToPrivate Direction = true
)

func (d Direction) String() string {
	if d == ToPrivate {
		return "to_private"
	}
	return "to_public"
}

// ParseDirection accepts "to_public"/"to-public"/"false" and "to_private"/"to-private"/"true".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "to_public", "to-public", "false":
		return ToPublic, true
	case "to_private", "to-private", "true":
		return ToPrivate, true
	default:
		return false, false
	}
}

// Side names a bridge instance.
type Side string

const (
	SidePrivate Side = "private"
	SidePublic  Side = "public"
)

// Operation names one of the four bridge entry points.
type Operation string

const (
	OpSendToPublicBridge       Operation = "sendToPublicBridge"
	OpReceiveFromPublicBridge  Operation = "receiveFromPublicBridge"
	OpReceiveFromPrivateBridge Operation = "receiveFromPrivateBridge"
	OpSendToPrivateBridge      Operation = "sendToPrivateBridge"
)

// Direction returns the only direction value the operation accepts.
func (op Operation) Direction() Direction {
	switch op {
	case OpReceiveFromPublicBridge, OpSendToPrivateBridge:
		return ToPrivate
	default:
		return ToPublic
	}
}

// Side returns the bridge instance that exposes the operation.
func (op Operation) Side() Side {
	switch op {
	case OpSendToPublicBridge, OpReceiveFromPublicBridge:
		return SidePrivate
	default:
		return SidePublic
	}
}

// EventType is the name of the event emitted by a successful operation.
type EventType string

const (
	EventAddedToPrivateBridge  EventType = "AddedToPrivateBridge"
	EventTransferredBackToGogo EventType = "TransferredBackToGogo"
	EventMintedToGoldToken     EventType = "MintedToGoldToken"
	EventBurnedFromGoldToken   EventType = "BurnedFromGoldToken"
)

// EventType returns the event the operation emits on success.
func (op Operation) EventType() EventType {
	switch op {
	case OpSendToPublicBridge:
		return EventAddedToPrivateBridge
	case OpReceiveFromPublicBridge:
		return EventTransferredBackToGogo
	case OpReceiveFromPrivateBridge:
		return EventMintedToGoldToken
	default:
		return EventBurnedFromGoldToken
	}
}

// Request is the oracle-authorized bridge call. The first four fields are
// what the oracle signs; Signature is the 65-byte r||s||v over them.
type Request struct {
	UserAddress common.Address
	Amount      *uint256.Int
	Nonce       *uint256.Int
	Direction   Direction
	Signature   []byte
}

// Event is the record of a successful bridge operation.
type Event struct {
	// Seq is assigned by the store and totally orders events.
	Seq         int64
	ID          string
	Bridge      Side
	Type        EventType
	UserAddress common.Address
	Amount      *uint256.Int
	Nonce       *uint256.Int
	Direction   Direction
	Caller      common.Address
	CreatedAt   time.Time
}
