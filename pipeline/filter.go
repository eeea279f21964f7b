package pipeline

import (
	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/canon"
)

// FilterMine narrows an aggregation result to entries involving addr. It is
// a display filter applied after reconciliation; the underlying
// classification is untouched.
func FilterMine(res bridge.AggregationResult, addr string) bridge.AggregationResult {
	me, ok := canon.Address(addr)
	if !ok {
		return res
	}

	out := bridge.AggregationResult{
		Completed:  []bridge.CompletedTransfer{},
		Suspicious: []bridge.SuspiciousClaim{},
		Pending:    []bridge.TransferEvent{},
	}

	for _, c := range res.Completed {
		if claimInvolves(&c.Claim, me) || transferInvolves(&c.Transfer, me) {
			out.Completed = append(out.Completed, c)
		}
	}
	for _, s := range res.Suspicious {
		if claimInvolves(&s.Claim, me) || (s.Transfer != nil && transferInvolves(s.Transfer, me)) {
			out.Suspicious = append(out.Suspicious, s)
		}
	}
	for _, tr := range res.Pending {
		if transferInvolves(&tr, me) {
			out.Pending = append(out.Pending, tr)
		}
	}

	out.FraudDetected = len(out.Suspicious) > 0
	out.Stats = bridge.Stats{
		ClaimCount:      len(out.Completed) + len(out.Suspicious),
		TransferCount:   len(out.Completed) + len(out.Pending),
		CompletedCount:  len(out.Completed),
		SuspiciousCount: len(out.Suspicious),
		PendingCount:    len(out.Pending),
		NotYetClaimable: res.Stats.NotYetClaimable,
	}
	return out
}

func claimInvolves(c *bridge.ClaimRecord, me string) bool {
	return equalsAddr(c.Claimant, me) || equalsAddr(c.Recipient, me) || equalsAddr(c.SenderAsClaimed, me)
}

func transferInvolves(t *bridge.TransferEvent, me string) bool {
	return equalsAddr(t.Sender, me) || equalsAddr(t.Recipient, me)
}

func equalsAddr(raw, me string) bool {
	v, ok := canon.Address(raw)
	return ok && v == me
}
