// Package classify reconciles claim records against transfer events and
// produces the three-way completed/suspicious/pending classification.
// Reconcile is a pure function: no network, no clock, and identical inputs
// always produce identical output, including ordering.
package classify

import (
	"math/big"
	"sort"
	"strings"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/canon"
	"github.com/bridgelens-io/bridgelens/common"
)

// Options tune reconciliation. The zero value is the strict default.
type Options struct {
	// TimestampToleranceSec widens timestamp equality; 0 means strict
	// canonical equality.
	TimestampToleranceSec int64
}

// Reconcile classifies with strict defaults.
func Reconcile(claims []bridge.ClaimRecord, transfers []bridge.TransferEvent) bridge.AggregationResult {
	return ReconcileWithOptions(claims, transfers, Options{})
}

// ReconcileWithOptions matches every claim to its referenced transfer and
// evaluates the claim's parameters field by field. Inputs are treated as
// immutable snapshots; the result is built from copies.
func ReconcileWithOptions(claims []bridge.ClaimRecord, transfers []bridge.TransferEvent, opts Options) bridge.AggregationResult {
	// Deterministic input ordering regardless of fetch interleaving.
	sortedClaims := append([]bridge.ClaimRecord(nil), claims...)
	sort.Slice(sortedClaims, func(i, j int) bool {
		if sortedClaims[i].BridgeAddress != sortedClaims[j].BridgeAddress {
			return sortedClaims[i].BridgeAddress < sortedClaims[j].BridgeAddress
		}
		return sortedClaims[i].ClaimNumber < sortedClaims[j].ClaimNumber
	})

	sortedTransfers := append([]bridge.TransferEvent(nil), transfers...)
	sort.Slice(sortedTransfers, func(i, j int) bool {
		a, b := &sortedTransfers[i], &sortedTransfers[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.SourceNetwork != b.SourceNetwork {
			return a.SourceNetwork < b.SourceNetwork
		}
		return a.SourceTxID < b.SourceTxID
	})

	// Index transfers by canonical txid. Candidates keep block order, so
	// the first entry is the canonical one for retried submissions.
	byTxID := make(map[string][]int, len(sortedTransfers))
	for i := range sortedTransfers {
		byTxID[canonTxID(sortedTransfers[i].SourceTxID)] = append(byTxID[canonTxID(sortedTransfers[i].SourceTxID)], i)
	}

	result := bridge.AggregationResult{
		Completed:  []bridge.CompletedTransfer{},
		Suspicious: []bridge.SuspiciousClaim{},
		Pending:    []bridge.TransferEvent{},
	}

	completed := make(map[int]bool) // transfer index -> part of a completed pair
	seen := make(map[string]int)    // txid -> claims already assigned a candidate

	for _, claim := range sortedClaims {
		txid := canonTxID(claim.ReferencedTxID)
		candidates := byTxID[txid]

		if len(candidates) == 0 {
			// the primary fraud signal: a claim with no underlying transfer
			result.Suspicious = append(result.Suspicious, bridge.SuspiciousClaim{
				Claim: claim,
				Report: bridge.MismatchReport{Checks: []bridge.FieldCheck{
					{Field: bridge.FieldFlow, Match: false, Reason: bridge.ReasonNoMatchingTransfer},
				}},
			})
			continue
		}

		// Retried submissions consume candidates in block order; once spent,
		// later claims are judged against the canonical (earliest) transfer.
		idx := candidates[0]
		if n := seen[txid]; n < len(candidates) {
			idx = candidates[n]
		}
		seen[txid]++

		transfer := sortedTransfers[idx]
		report := evaluate(&claim, &transfer, opts)
		if report.Clean() {
			completed[idx] = true
			result.Completed = append(result.Completed, bridge.CompletedTransfer{Claim: claim, Transfer: transfer})
		} else {
			tr := transfer
			result.Suspicious = append(result.Suspicious, bridge.SuspiciousClaim{Claim: claim, Report: report, Transfer: &tr})
		}
	}

	for i := range sortedTransfers {
		if !completed[i] {
			result.Pending = append(result.Pending, sortedTransfers[i])
		}
	}

	result.FraudDetected = len(result.Suspicious) > 0
	result.Stats = bridge.Stats{
		ClaimCount:      len(claims),
		TransferCount:   len(transfers),
		CompletedCount:  len(result.Completed),
		SuspiciousCount: len(result.Suspicious),
		PendingCount:    len(result.Pending),
	}
	return result
}

// evaluate runs every field check in fixed order so mismatch reports are
// reproducible byte for byte.
func evaluate(claim *bridge.ClaimRecord, transfer *bridge.TransferEvent, opts Options) bridge.MismatchReport {
	checks := []bridge.FieldCheck{
		checkAmount(bridge.FieldAmount, claim.Amount, transfer.Amount),
		checkAddress(bridge.FieldSender, claim.SenderAsClaimed, transfer.Sender),
		checkAddress(bridge.FieldRecipient, claim.Recipient, transfer.Recipient),
		checkReward(claim.Reward, transfer.Reward),
		checkData(claim.Data, transfer.Data),
		checkTimestamp(claim.Timestamp, transfer.Timestamp, opts.TimestampToleranceSec),
		checkFlow(claim.Side, transfer.Direction),
	}
	return bridge.MismatchReport{Checks: checks}
}

func checkAmount(field bridge.Field, claimRaw, transferRaw string) bridge.FieldCheck {
	if isMissing(claimRaw) || isMissing(transferRaw) {
		return bridge.FieldCheck{Field: field, Match: false, Reason: bridge.ReasonMissingValue}
	}
	cv, cok := canon.Amount(claimRaw)
	tv, tok := canon.Amount(transferRaw)
	if !cok || !tok {
		// not evidence of fraud, but not a match either
		return bridge.FieldCheck{Field: field, Match: false, Reason: bridge.ReasonConversionError}
	}
	if cv != tv {
		return bridge.FieldCheck{Field: field, Match: false, Reason: bridge.ReasonDifferentValues}
	}
	if strings.TrimSpace(claimRaw) != strings.TrimSpace(transferRaw) {
		return bridge.FieldCheck{Field: field, Match: true, Reason: bridge.ReasonFormatMismatchButEqual}
	}
	return bridge.FieldCheck{Field: field, Match: true}
}

func checkReward(claimRaw, transferRaw string) bridge.FieldCheck {
	if isMissing(claimRaw) || isMissing(transferRaw) {
		return bridge.FieldCheck{Field: bridge.FieldReward, Match: false, Reason: bridge.ReasonMissingValue}
	}
	cv, cok := canon.Amount(claimRaw)
	tv, tok := canon.Amount(transferRaw)
	if !cok || !tok {
		return bridge.FieldCheck{Field: bridge.FieldReward, Match: false, Reason: bridge.ReasonConversionError}
	}
	cb, _ := new(big.Int).SetString(cv, 10)
	tb, _ := new(big.Int).SetString(tv, 10)
	// a claim may take up to the transfer's reward, never more
	if cb.Cmp(tb) > 0 {
		return bridge.FieldCheck{Field: bridge.FieldReward, Match: false, Reason: bridge.ReasonRewardExceedsTransfer}
	}
	if cv == tv && strings.TrimSpace(claimRaw) != strings.TrimSpace(transferRaw) {
		return bridge.FieldCheck{Field: bridge.FieldReward, Match: true, Reason: bridge.ReasonFormatMismatchButEqual}
	}
	return bridge.FieldCheck{Field: bridge.FieldReward, Match: true}
}

func checkAddress(field bridge.Field, claimRaw, transferRaw string) bridge.FieldCheck {
	if isMissing(claimRaw) || isMissing(transferRaw) {
		return bridge.FieldCheck{Field: field, Match: false, Reason: bridge.ReasonMissingValue}
	}
	cv, cok := canon.Address(claimRaw)
	tv, tok := canon.Address(transferRaw)
	if !cok || !tok {
		return bridge.FieldCheck{Field: field, Match: false, Reason: bridge.ReasonConversionError}
	}
	if cv != tv {
		return bridge.FieldCheck{Field: field, Match: false, Reason: bridge.ReasonDifferentAddresses}
	}
	if strings.TrimSpace(claimRaw) == strings.TrimSpace(transferRaw) {
		return bridge.FieldCheck{Field: field, Match: true}
	}

	// Same address, different spelling. Informational only.
	cf := canon.AddressFormat(claimRaw)
	tf := canon.AddressFormat(transferRaw)
	reason := bridge.ReasonFormatMismatchButEqual
	switch {
	case cf == canon.AddrFormatChecksum && tf == canon.AddrFormatChecksum:
		reason = bridge.ReasonChecksummedFormatMismatch
	case cf == canon.AddrFormatChecksum || tf == canon.AddrFormatChecksum:
		reason = bridge.ReasonMixedChecksumFormat
	case nonChecksummed(cf) && nonChecksummed(tf):
		reason = bridge.ReasonBothNonChecksummed
	}
	return bridge.FieldCheck{Field: field, Match: true, Reason: reason}
}

func nonChecksummed(f canon.AddrFormat) bool {
	return f == canon.AddrFormatLower || f == canon.AddrFormatUpper || f == canon.AddrFormatOther
}

func checkData(claimRaw, transferRaw string) bridge.FieldCheck {
	cv, cok := canon.Data(claimRaw)
	tv, tok := canon.Data(transferRaw)
	if !cok || !tok {
		return bridge.FieldCheck{Field: bridge.FieldData, Match: false, Reason: bridge.ReasonConversionError}
	}
	if cv != tv {
		return bridge.FieldCheck{Field: bridge.FieldData, Match: false, Reason: bridge.ReasonDataMismatch}
	}
	if strings.TrimSpace(claimRaw) != strings.TrimSpace(transferRaw) {
		return bridge.FieldCheck{Field: bridge.FieldData, Match: true, Reason: bridge.ReasonFormatMismatchButEqual}
	}
	return bridge.FieldCheck{Field: bridge.FieldData, Match: true}
}

func checkTimestamp(claimRaw, transferRaw string, toleranceSec int64) bridge.FieldCheck {
	if isMissing(claimRaw) || isMissing(transferRaw) {
		return bridge.FieldCheck{Field: bridge.FieldTimestamp, Match: false, Reason: bridge.ReasonMissingValue}
	}
	cv, cok := canon.Timestamp(claimRaw)
	tv, tok := canon.Timestamp(transferRaw)
	if !cok || !tok {
		return bridge.FieldCheck{Field: bridge.FieldTimestamp, Match: false, Reason: bridge.ReasonConversionError}
	}
	delta := cv - tv
	if delta < 0 {
		delta = -delta
	}
	if delta > toleranceSec {
		return bridge.FieldCheck{Field: bridge.FieldTimestamp, Match: false, Reason: bridge.ReasonTimestampMismatch}
	}
	if cv != tv || strings.TrimSpace(claimRaw) != strings.TrimSpace(transferRaw) {
		return bridge.FieldCheck{Field: bridge.FieldTimestamp, Match: true, Reason: bridge.ReasonFormatMismatchButEqual}
	}
	return bridge.FieldCheck{Field: bridge.FieldTimestamp, Match: true}
}

// checkFlow verifies the claim sits on the logical inverse side of the
// transfer's direction: exported transfers are claimed on an import bridge
// and vice versa.
func checkFlow(side bridge.BridgeSide, direction bridge.Direction) bridge.FieldCheck {
	if side == "" || direction == "" {
		return bridge.FieldCheck{Field: bridge.FieldFlow, Match: false, Reason: bridge.ReasonMissingValue}
	}
	valid := (side == bridge.SideImport && direction == bridge.DirectionOutbound) ||
		(side == bridge.SideExport && direction == bridge.DirectionInbound)
	if !valid {
		return bridge.FieldCheck{Field: bridge.FieldFlow, Match: false, Reason: bridge.ReasonInvalidFlow}
	}
	return bridge.FieldCheck{Field: bridge.FieldFlow, Match: true}
}

func isMissing(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

func canonTxID(txid string) string {
	s := strings.TrimSpace(strings.ToLower(txid))
	return common.Trim0xPrefix(s)
}
