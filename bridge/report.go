package bridge

// Field is a claim parameter examined during reconciliation.
type Field string

const (
	FieldAmount    Field = "amount"
	FieldSender    Field = "sender"
	FieldRecipient Field = "recipient"
	FieldReward    Field = "reward"
	FieldData      Field = "data"
	FieldTimestamp Field = "timestamp"
	FieldFlow      Field = "flow"
)

// ReasonCode is the closed vocabulary of reconciliation outcomes per field.
type ReasonCode string

const (
	// value comparisons
	ReasonDifferentValues        ReasonCode = "different_values"
	ReasonFormatMismatchButEqual ReasonCode = "format_mismatch_but_equal"
	ReasonMissingValue           ReasonCode = "missing_value"
	ReasonConversionError        ReasonCode = "conversion_error"

	// address comparisons
	ReasonDifferentAddresses        ReasonCode = "different_addresses"
	ReasonMixedChecksumFormat       ReasonCode = "mixed_checksum_format"
	ReasonBothNonChecksummed        ReasonCode = "both_non_checksummed"
	ReasonChecksummedFormatMismatch ReasonCode = "checksummed_format_mismatch"

	// field-specific
	ReasonRewardExceedsTransfer ReasonCode = "claim_reward_exceeds_transfer_reward"
	ReasonDataMismatch          ReasonCode = "data_mismatch"
	ReasonTimestampMismatch     ReasonCode = "timestamp_mismatch"
	ReasonInvalidFlow           ReasonCode = "invalid_flow"

	// correlation
	ReasonNoMatchingTransfer ReasonCode = "no_matching_transfer"
)

// FieldCheck is one (field, isMatch, reason) tuple of a MismatchReport.
// Reason is empty for a plain match; cosmetic format reasons keep Match true.
type FieldCheck struct {
	Field  Field      `json:"field"`
	Match  bool       `json:"isMatch"`
	Reason ReasonCode `json:"reasonCode,omitempty"`
}

// MismatchReport is the per-claim diagnostic produced by reconciliation.
type MismatchReport struct {
	Checks []FieldCheck `json:"checks"`
}

// Clean reports whether every field check passed. Cosmetic format-only
// reasons count as passing because they carry Match == true.
func (r *MismatchReport) Clean() bool {
	for _, c := range r.Checks {
		if !c.Match {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not match.
func (r *MismatchReport) Failed() []FieldCheck {
	var out []FieldCheck
	for _, c := range r.Checks {
		if !c.Match {
			out = append(out, c)
		}
	}
	return out
}

// CompletedTransfer is a claim correctly reconciled against its transfer.
type CompletedTransfer struct {
	Claim    ClaimRecord   `json:"claim"`
	Transfer TransferEvent `json:"transfer"`
}

// SuspiciousClaim is a claim whose parameters failed to reconcile. Transfer
// is nil when the claim references no known transfer at all.
type SuspiciousClaim struct {
	Claim    ClaimRecord    `json:"claim"`
	Report   MismatchReport `json:"report"`
	Transfer *TransferEvent `json:"transfer,omitempty"`
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	ClaimCount      int `json:"claimCount"`
	TransferCount   int `json:"transferCount"`
	CompletedCount  int `json:"completedCount"`
	SuspiciousCount int `json:"suspiciousCount"`
	PendingCount    int `json:"pendingCount"`
	// NotYetClaimable counts pending transfers younger than the bridge's
	// minimum transfer age, i.e. ones that cannot have a claim yet.
	NotYetClaimable int `json:"notYetClaimable"`
}

// AggregationResult is the three-way classification of a full claim and
// transfer set. Every transfer lands in exactly one of Completed/Pending,
// every claim in exactly one of Completed/Suspicious.
type AggregationResult struct {
	Completed     []CompletedTransfer `json:"completedTransfers"`
	Suspicious    []SuspiciousClaim   `json:"suspiciousClaims"`
	Pending       []TransferEvent     `json:"pendingTransfers"`
	FraudDetected bool                `json:"fraudDetected"`
	Stats         Stats               `json:"stats"`
}
