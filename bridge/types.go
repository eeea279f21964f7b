package bridge

import (
	"encoding/json"
	"fmt"
)

// Direction of a transfer as recorded on its source chain.
type Direction string

const (
	// DirectionOutbound is a transfer leaving the home chain toward the
	// foreign chain (export-initiated).
	DirectionOutbound Direction = "outbound"
	// DirectionInbound is a transfer entering the home chain from the
	// foreign chain (import-initiated).
	DirectionInbound Direction = "inbound"
)

// BridgeSide tells which half of a deployed bridge pair a record was
// observed on.
type BridgeSide string

const (
	SideExport BridgeSide = "export"
	SideImport BridgeSide = "import"
)

// ClaimOutcome is the current state of the challenge game for a claim.
type ClaimOutcome string

const (
	OutcomeUndetermined ClaimOutcome = "undetermined"
	OutcomeYes          ClaimOutcome = "yes"
	OutcomeNo           ClaimOutcome = "no"
)

// TransferEvent is a source-chain record of a transfer request. Immutable
// once observed. All integer-valued fields are decimal strings so amounts
// survive JSON round-trips without precision loss.
type TransferEvent struct {
	SourceTxID         string    `json:"sourceTxId"`
	SourceNetwork      string    `json:"sourceNetwork"`
	DestinationNetwork string    `json:"destinationNetwork"`
	Direction          Direction `json:"direction"`
	Sender             string    `json:"sender"`
	Recipient          string    `json:"recipient"`
	Amount             string    `json:"amount"`
	Reward             string    `json:"reward"`
	Data               string    `json:"data"`
	Timestamp          string    `json:"timestamp"`
	BlockNumber        uint64    `json:"blockNumber"`
}

// TransferKey identifies a TransferEvent uniquely.
type TransferKey struct {
	Network string
	TxID    string
}

func (t *TransferEvent) Key() TransferKey {
	return TransferKey{Network: t.SourceNetwork, TxID: t.SourceTxID}
}

// ClaimRecord is a destination-chain record asserting that a TransferEvent
// occurred. Mutable over its lifecycle on chain; a fetched record is a
// point-in-time snapshot. Identity is (BridgeAddress, ClaimNumber).
type ClaimRecord struct {
	ClaimNumber     uint64       `json:"claimNumber"`
	BridgeAddress   string       `json:"bridgeAddress"`
	Network         string       `json:"network"`
	Side            BridgeSide   `json:"side"`
	ReferencedTxID  string       `json:"referencedTxId"`
	Claimant        string       `json:"claimant"`
	Recipient       string       `json:"recipient"`
	Amount          string       `json:"amount"`
	Reward          string       `json:"reward"`
	Data            string       `json:"data"`
	SenderAsClaimed string       `json:"senderAsClaimed"`
	Timestamp       string       `json:"timestamp"`
	CurrentOutcome  ClaimOutcome `json:"currentOutcome"`
	YesStake        string       `json:"yesStake"`
	NoStake         string       `json:"noStake"`
	ExpiryTimestamp string       `json:"expiryTimestamp"`
	Finished        bool         `json:"finished"`
	Withdrawn       bool         `json:"withdrawn"`
}

// ClaimKey identifies a ClaimRecord uniquely.
type ClaimKey struct {
	BridgeAddress string
	ClaimNumber   uint64
}

func (c *ClaimRecord) Key() ClaimKey {
	return ClaimKey{BridgeAddress: c.BridgeAddress, ClaimNumber: c.ClaimNumber}
}

func (c *ClaimRecord) String() string {
	return fmt.Sprintf("claim %d on %s (tx %s)", c.ClaimNumber, c.BridgeAddress, c.ReferencedTxID)
}

// MarshalIndent is a convenience used by the reporter and the cache when a
// readable dump is wanted.
func (c *ClaimRecord) MarshalIndent() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
