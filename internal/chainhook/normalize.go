package chainhook

import (
	"time"

	"cypher-activity/internal/domain"
)

// Contract log topics emitted by the profiles contract.
const (
	TopicProfileUpdated = "profile-updated"
	TopicProfileCleared = "profile-cleared"
)

// Contracts holds the configured contract addresses used as normalization
// gates. Comparisons are exact-string and case-sensitive.
type Contracts struct {
	Profiles     string // profiles contract id
	CbtcToken    string // fungible token asset identifier
	Collectibles string // NFT collection asset identifier
}

// Normalizer maps raw chainhook events into canonical activity events. It is
// a pure function of (event, context, contracts); events that do not match a
// configured contract produce no record, which is the expected outcome for
// most raw events and never an error.
type Normalizer struct {
	contracts Contracts
}

// NewNormalizer creates a normalizer for the given contract addresses.
func NewNormalizer(contracts Contracts) *Normalizer {
	return &Normalizer{contracts: contracts}
}

// NormalizeBlock normalizes every event of every transaction in the block,
// in array order, dropping non-matching events.
func (n *Normalizer) NormalizeBlock(b *Block) []*domain.ActivityEvent {
	var events []*domain.ActivityEvent
	for ti := range b.Transactions {
		tx := &b.Transactions[ti]
		for ei := range tx.Events {
			if ev, ok := n.NormalizeEvent(&tx.Events[ei], tx, b); ok {
				events = append(events, ev)
			}
		}
	}
	return events
}

// NormalizeEvent maps one raw event into a canonical activity event. The
// second return is false when the event does not match any configured
// contract or is of a kind this service does not model.
func (n *Normalizer) NormalizeEvent(ev *RawEvent, tx *Transaction, b *Block) (*domain.ActivityEvent, bool) {
	base := domain.ActivityEvent{
		TxID:        *tx.Tx.TxID,
		BlockHeight: *b.Block.BlockHeight,
		BlockHash:   *b.Block.BlockHash,
		Timestamp:   time.Unix(*b.Block.BurnBlockTime, 0).UTC(),
		Rollback:    false,
	}

	switch ev.Type {
	case EventSmartContractLog:
		return n.normalizeContractLog(ev, base)
	case EventFtTransfer:
		return n.normalizeFtTransfer(ev, base)
	case EventFtMint:
		return n.normalizeFtMint(ev, base)
	case EventNftTransfer:
		return n.normalizeNftTransfer(ev, base)
	case EventNftMint:
		return n.normalizeNftMint(ev, base)
	case EventStxTransfer, EventStxMint, EventStxBurn:
		// Native STX movements are not modeled.
		return nil, false
	}
	return nil, false
}

func (n *Normalizer) normalizeContractLog(ev *RawEvent, base domain.ActivityEvent) (*domain.ActivityEvent, bool) {
	if ev.ContractID == "" || ev.Topic == "" {
		return nil, false
	}
	if ev.ContractID != n.contracts.Profiles {
		return nil, false
	}

	// The subject address lives inside the opaque log value. Without it the
	// event could never be found through an address-scoped query, so it is
	// dropped rather than stored with an empty addressInvolved.
	address, ok := ev.Value.String("address")
	if !ok || address == "" {
		return nil, false
	}

	switch ev.Topic {
	case TopicProfileUpdated:
		base.EventType = domain.EventTypeProfileUpdated
		base.DisplayName, _ = ev.Value.String("displayName")
	case TopicProfileCleared:
		base.EventType = domain.EventTypeProfileCleared
	default:
		return nil, false
	}

	base.ContractID = ev.ContractID
	base.AddressInvolved = []string{address}
	return &base, true
}

func (n *Normalizer) normalizeFtTransfer(ev *RawEvent, base domain.ActivityEvent) (*domain.ActivityEvent, bool) {
	if ev.AssetIdentifier != n.contracts.CbtcToken {
		return nil, false
	}
	base.ContractID = ev.AssetIdentifier
	base.EventType = domain.EventTypeCbtcTransfer
	base.From = ev.Sender
	base.To = ev.Recipient
	base.Amount = ev.Amount
	base.AddressInvolved = []string{ev.Sender, ev.Recipient}
	return &base, true
}

func (n *Normalizer) normalizeFtMint(ev *RawEvent, base domain.ActivityEvent) (*domain.ActivityEvent, bool) {
	if ev.AssetIdentifier != n.contracts.CbtcToken {
		return nil, false
	}
	base.ContractID = ev.AssetIdentifier
	base.EventType = domain.EventTypeCbtcMint
	base.To = ev.Recipient
	base.Amount = ev.Amount
	base.AddressInvolved = []string{ev.Recipient}
	return &base, true
}

func (n *Normalizer) normalizeNftTransfer(ev *RawEvent, base domain.ActivityEvent) (*domain.ActivityEvent, bool) {
	if ev.AssetIdentifier != n.contracts.Collectibles {
		return nil, false
	}
	base.ContractID = ev.AssetIdentifier
	base.EventType = domain.EventTypeCnftTransfer
	base.From = ev.Sender
	base.To = ev.Recipient
	base.TokenID = ev.TokenID
	base.AddressInvolved = []string{ev.Sender, ev.Recipient}
	return &base, true
}

func (n *Normalizer) normalizeNftMint(ev *RawEvent, base domain.ActivityEvent) (*domain.ActivityEvent, bool) {
	if ev.AssetIdentifier != n.contracts.Collectibles {
		return nil, false
	}
	base.ContractID = ev.AssetIdentifier
	base.EventType = domain.EventTypeCnftMint
	base.To = ev.Recipient
	base.TokenID = ev.TokenID
	base.AddressInvolved = []string{ev.Recipient}
	return &base, true
}
