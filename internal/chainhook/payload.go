// Package chainhook holds the wire types for chainhook webhook payloads,
// their structural validation, and the normalizer that maps raw on-chain
// events into canonical activity events.
package chainhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawEventType is the type tag carried by a raw chainhook event.
type RawEventType string

const (
	EventSmartContractLog RawEventType = "smart_contract_log"
	EventStxTransfer      RawEventType = "stx_transfer"
	EventStxMint          RawEventType = "stx_mint"
	EventStxBurn          RawEventType = "stx_burn"
	EventFtTransfer       RawEventType = "ft_transfer"
	EventFtMint           RawEventType = "ft_mint"
	EventNftTransfer      RawEventType = "nft_transfer"
	EventNftMint          RawEventType = "nft_mint"
)

// Valid reports whether t is a known raw event type tag.
func (t RawEventType) Valid() bool {
	switch t {
	case EventSmartContractLog, EventStxTransfer, EventStxMint, EventStxBurn,
		EventFtTransfer, EventFtMint, EventNftTransfer, EventNftMint:
		return true
	}
	return false
}

// OpaqueValue is the loosely typed payload attached to smart contract log
// events. It is decoded as a key-value map at the boundary and only the
// normalizer extracts typed fields from it. Non-object values decode to nil
// instead of failing the whole payload.
type OpaqueValue map[string]any

func (v *OpaqueValue) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		*v = nil
		return nil
	}
	*v = m
	return nil
}

// String extracts a string field from the value, with ok=false when the key
// is absent or holds a non-string.
func (v OpaqueValue) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// RawEvent is one event inside a chainhook transaction. Only Type is
// required; the remaining fields are present depending on Type. Unknown
// extra fields are tolerated and dropped by the decoder.
type RawEvent struct {
	Type            RawEventType `json:"type"`
	ContractID      string       `json:"contract_id"`
	Topic           string       `json:"topic"`
	Value           OpaqueValue  `json:"value"`
	Sender          string       `json:"sender"`
	Recipient       string       `json:"recipient"`
	Amount          string       `json:"amount"`
	AssetIdentifier string       `json:"asset_identifier"`
	TokenID         string       `json:"token_id"`
}

// TxHeader identifies the transaction an event belongs to. All fields are
// required for shape.
type TxHeader struct {
	TxID          *string `json:"txid"`
	BlockHeight   *int64  `json:"block_height"`
	BlockHash     *string `json:"block_hash"`
	BurnBlockTime *int64  `json:"burn_block_time"`
}

// Transaction is one transaction in a block with its ordered raw events.
type Transaction struct {
	Tx     *TxHeader  `json:"tx"`
	Events []RawEvent `json:"events"`
}

// BlockHeader identifies a block. All fields are required for shape.
// BurnBlockTime is Unix seconds.
type BlockHeader struct {
	BlockHeight   *int64  `json:"block_height"`
	BlockHash     *string `json:"block_hash"`
	BurnBlockTime *int64  `json:"burn_block_time"`
}

// Block is one block entry in an apply or rollback list.
type Block struct {
	Block        *BlockHeader  `json:"block"`
	Transactions []Transaction `json:"transactions"`
}

// Payload is the webhook body: ordered apply and rollback block lists, both
// optional.
type Payload struct {
	Apply    []Block `json:"apply"`
	Rollback []Block `json:"rollback"`
}

// ValidationError reports the structural constraints a payload violated.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid chainhook payload: " + strings.Join(e.Violations, "; ")
}

// DecodePayload parses and structurally validates a webhook body. Malformed
// JSON and shape violations both surface as *ValidationError; no semantic
// checks (contract gates, topic matching) happen here.
func DecodePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("body: %v", err)}}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the payload shape and returns a *ValidationError listing
// every violated constraint, or nil.
func (p *Payload) Validate() error {
	var v []string
	for i := range p.Apply {
		v = validateBlock(v, fmt.Sprintf("apply[%d]", i), &p.Apply[i])
	}
	for i := range p.Rollback {
		v = validateBlock(v, fmt.Sprintf("rollback[%d]", i), &p.Rollback[i])
	}
	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

func validateBlock(v []string, path string, b *Block) []string {
	if b.Block == nil {
		v = append(v, path+".block: required")
	} else {
		if b.Block.BlockHeight == nil {
			v = append(v, path+".block.block_height: required")
		}
		if b.Block.BlockHash == nil {
			v = append(v, path+".block.block_hash: required")
		}
		if b.Block.BurnBlockTime == nil {
			v = append(v, path+".block.burn_block_time: required")
		}
	}
	if b.Transactions == nil {
		v = append(v, path+".transactions: required")
	}
	for i := range b.Transactions {
		v = validateTransaction(v, fmt.Sprintf("%s.transactions[%d]", path, i), &b.Transactions[i])
	}
	return v
}

func validateTransaction(v []string, path string, t *Transaction) []string {
	if t.Tx == nil {
		v = append(v, path+".tx: required")
	} else {
		if t.Tx.TxID == nil || *t.Tx.TxID == "" {
			v = append(v, path+".tx.txid: required")
		}
		if t.Tx.BlockHeight == nil {
			v = append(v, path+".tx.block_height: required")
		}
		if t.Tx.BlockHash == nil {
			v = append(v, path+".tx.block_hash: required")
		}
		if t.Tx.BurnBlockTime == nil {
			v = append(v, path+".tx.burn_block_time: required")
		}
	}
	if t.Events == nil {
		v = append(v, path+".events: required")
	}
	for i := range t.Events {
		if !t.Events[i].Type.Valid() {
			v = append(v, fmt.Sprintf("%s.events[%d].type: unknown value %q", path, i, string(t.Events[i].Type)))
		}
	}
	return v
}
