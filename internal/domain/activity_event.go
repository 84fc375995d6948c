package domain

import "time"

// EventType is the canonical activity event kind. The set is closed: the
// normalizer only ever emits these values, and stores reject anything else.
type EventType string

const (
	EventTypeProfileUpdated EventType = "profile-updated"
	EventTypeProfileCleared EventType = "profile-cleared"
	EventTypeCbtcMint       EventType = "cbtc-mint"
	EventTypeCbtcTransfer   EventType = "cbtc-transfer"
	EventTypeCnftMint       EventType = "cnft-mint"
	EventTypeCnftTransfer   EventType = "cnft-transfer"
)

// EventTypes lists all canonical event types.
var EventTypes = []EventType{
	EventTypeProfileUpdated,
	EventTypeProfileCleared,
	EventTypeCbtcMint,
	EventTypeCbtcTransfer,
	EventTypeCnftMint,
	EventTypeCnftTransfer,
}

// Valid reports whether t is a member of the closed event type set.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeProfileUpdated, EventTypeProfileCleared,
		EventTypeCbtcMint, EventTypeCbtcTransfer,
		EventTypeCnftMint, EventTypeCnftTransfer:
		return true
	}
	return false
}

// ActivityEvent is the canonical denormalized record produced by the
// chainhook normalizer. Records are immutable once written except for the
// Rollback flag, which is flipped (one way) when the originating block is
// reorganized away.
type ActivityEvent struct {
	TxID        string    `json:"txid" bson:"txid"`
	BlockHeight int64     `json:"blockHeight" bson:"blockHeight"`
	BlockHash   string    `json:"blockHash" bson:"blockHash"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"` // block burn time
	ContractID  string    `json:"contractId" bson:"contractId"`
	EventType   EventType `json:"eventType" bson:"eventType"`

	// Optional fields, presence depends on EventType.
	From        string `json:"from,omitempty" bson:"from,omitempty"`
	To          string `json:"to,omitempty" bson:"to,omitempty"`
	Amount      string `json:"amount,omitempty" bson:"amount,omitempty"` // verbatim decimal string
	TokenID     string `json:"tokenId,omitempty" bson:"tokenId,omitempty"`
	DisplayName string `json:"displayName,omitempty" bson:"displayName,omitempty"`

	// AddressInvolved lists every address that should discover this event
	// via an address-scoped query. Never empty for a persisted event.
	AddressInvolved []string `json:"addressInvolved" bson:"addressInvolved"`

	// Rollback marks the event as logically retracted. Rolled-back events
	// are kept for audit but excluded from default reads.
	Rollback bool `json:"rollback" bson:"rollback"`
}
