package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridgelens-io/bridgelens/bridge"
)

const (
	senderChecksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	senderLower       = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	recipientAddr     = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
	strangerAddr      = "0x0000000000000000000000000000000000000bad"
)

func testTransfer() bridge.TransferEvent {
	return bridge.TransferEvent{
		SourceTxID:         "0xaa00000000000000000000000000000000000000000000000000000000000001",
		SourceNetwork:      "homechain",
		DestinationNetwork: "farchain",
		Direction:          bridge.DirectionOutbound,
		Sender:             senderLower,
		Recipient:          recipientAddr,
		Amount:             "1000000",
		Reward:             "300",
		Data:               "dead",
		Timestamp:          "1719916800",
		BlockNumber:        100,
	}
}

func testClaim() bridge.ClaimRecord {
	return bridge.ClaimRecord{
		ClaimNumber:     1,
		BridgeAddress:   "0x1000000000000000000000000000000000000001",
		Network:         "farchain",
		Side:            bridge.SideImport,
		ReferencedTxID:  "0xaa00000000000000000000000000000000000000000000000000000000000001",
		Claimant:        recipientAddr,
		Recipient:       recipientAddr,
		Amount:          "1000000",
		Reward:          "300",
		Data:            "dead",
		SenderAsClaimed: senderLower,
		Timestamp:       "1719916800",
		CurrentOutcome:  bridge.OutcomeUndetermined,
		YesStake:        "0",
		NoStake:         "0",
	}
}

func fieldCheck(t *testing.T, report bridge.MismatchReport, field bridge.Field) bridge.FieldCheck {
	t.Helper()
	for _, c := range report.Checks {
		if c.Field == field {
			return c
		}
	}
	t.Fatalf("no check for field %s", field)
	return bridge.FieldCheck{}
}

func TestReconcileCleanPairCompletes(t *testing.T) {
	res := Reconcile([]bridge.ClaimRecord{testClaim()}, []bridge.TransferEvent{testTransfer()})

	require.Len(t, res.Completed, 1)
	assert.Empty(t, res.Suspicious)
	assert.Empty(t, res.Pending)
	assert.False(t, res.FraudDetected)
	assert.Equal(t, 1, res.Stats.CompletedCount)
}

func TestReconcileCaseOnlySenderDifferenceCompletes(t *testing.T) {
	claim := testClaim()
	claim.SenderAsClaimed = senderChecksummed // transfer recorded it lowercase

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Completed, 1)
	assert.Empty(t, res.Suspicious)
}

func TestReconcileHexAmountEncodingCompletes(t *testing.T) {
	claim := testClaim()
	claim.Amount = "0xf4240" // same value, different encoding

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Completed, 1)
	assert.Empty(t, res.Suspicious)
}

func TestReconcileDifferentAmountIsSuspicious(t *testing.T) {
	claim := testClaim()
	claim.Amount = "2000000"

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Suspicious, 1)
	assert.Empty(t, res.Completed)
	assert.True(t, res.FraudDetected)

	check := fieldCheck(t, res.Suspicious[0].Report, bridge.FieldAmount)
	assert.False(t, check.Match)
	assert.Equal(t, bridge.ReasonDifferentValues, check.Reason)
	require.NotNil(t, res.Suspicious[0].Transfer)

	// the transfer it failed against is still awaiting a correct claim
	require.Len(t, res.Pending, 1)
}

func TestReconcileUnparseableAmountIsConversionErrorNotFraudValue(t *testing.T) {
	claim := testClaim()
	claim.Amount = "not-a-number"

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Suspicious, 1)

	check := fieldCheck(t, res.Suspicious[0].Report, bridge.FieldAmount)
	assert.False(t, check.Match)
	assert.Equal(t, bridge.ReasonConversionError, check.Reason)
}

func TestReconcileRewardAboveTransferReward(t *testing.T) {
	claim := testClaim()
	claim.Reward = "500" // transfer only offered 300

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Suspicious, 1)

	check := fieldCheck(t, res.Suspicious[0].Report, bridge.FieldReward)
	assert.False(t, check.Match)
	assert.Equal(t, bridge.ReasonRewardExceedsTransfer, check.Reason)
}

func TestReconcileRewardBelowTransferRewardIsFine(t *testing.T) {
	claim := testClaim()
	claim.Reward = "100"

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Completed, 1)
}

func TestReconcileDifferentRecipientIsSuspicious(t *testing.T) {
	claim := testClaim()
	claim.Recipient = strangerAddr

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Suspicious, 1)

	check := fieldCheck(t, res.Suspicious[0].Report, bridge.FieldRecipient)
	assert.Equal(t, bridge.ReasonDifferentAddresses, check.Reason)
}

func TestReconcileFabricatedClaim(t *testing.T) {
	claim := testClaim()
	claim.ReferencedTxID = "0xdd00000000000000000000000000000000000000000000000000000000000099"

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Suspicious, 1)
	assert.Nil(t, res.Suspicious[0].Transfer)
	assert.True(t, res.FraudDetected)

	report := res.Suspicious[0].Report
	require.Len(t, report.Checks, 1)
	assert.Equal(t, bridge.FieldFlow, report.Checks[0].Field)
	assert.Equal(t, bridge.ReasonNoMatchingTransfer, report.Checks[0].Reason)

	// the real transfer stays pending
	require.Len(t, res.Pending, 1)
}

func TestReconcileUnclaimedTransferIsPending(t *testing.T) {
	res := Reconcile(nil, []bridge.TransferEvent{testTransfer()})
	assert.Empty(t, res.Completed)
	assert.Empty(t, res.Suspicious)
	require.Len(t, res.Pending, 1)
	assert.False(t, res.FraudDetected)
}

func TestReconcileInvalidFlow(t *testing.T) {
	claim := testClaim()
	claim.Side = bridge.SideExport // outbound transfers must be claimed on the import side

	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Suspicious, 1)

	check := fieldCheck(t, res.Suspicious[0].Report, bridge.FieldFlow)
	assert.Equal(t, bridge.ReasonInvalidFlow, check.Reason)
}

func TestReconcileRetriedTransfersUseEarliestBlock(t *testing.T) {
	first := testTransfer()
	first.BlockNumber = 50
	retry := testTransfer()
	retry.BlockNumber = 90

	res := Reconcile([]bridge.ClaimRecord{testClaim()}, []bridge.TransferEvent{retry, first})
	require.Len(t, res.Completed, 1)
	assert.Equal(t, uint64(50), res.Completed[0].Transfer.BlockNumber)
	// the retried duplicate is still pending
	require.Len(t, res.Pending, 1)
	assert.Equal(t, uint64(90), res.Pending[0].BlockNumber)
}

func TestReconcileTimestampToleranceIsExplicit(t *testing.T) {
	claim := testClaim()
	claim.Timestamp = "1719916805"

	// strict by default
	res := Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	require.Len(t, res.Suspicious, 1)
	check := fieldCheck(t, res.Suspicious[0].Report, bridge.FieldTimestamp)
	assert.Equal(t, bridge.ReasonTimestampMismatch, check.Reason)

	// tolerant when configured
	res = ReconcileWithOptions([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()}, Options{TimestampToleranceSec: 10})
	require.Len(t, res.Completed, 1)
}

func TestReconcileDeterministic(t *testing.T) {
	claims := []bridge.ClaimRecord{testClaim()}
	badClaim := testClaim()
	badClaim.ClaimNumber = 2
	badClaim.Amount = "5"
	claims = append(claims, badClaim)

	extra := testTransfer()
	extra.SourceTxID = "0xbb00000000000000000000000000000000000000000000000000000000000002"
	transfers := []bridge.TransferEvent{testTransfer(), extra}

	a := Reconcile(claims, transfers)
	// reversed input order must not change anything
	b := Reconcile(
		[]bridge.ClaimRecord{claims[1], claims[0]},
		[]bridge.TransferEvent{transfers[1], transfers[0]},
	)
	assert.Equal(t, a, b)
}

func TestFraudFlagTracksSuspiciousCount(t *testing.T) {
	res := Reconcile([]bridge.ClaimRecord{testClaim()}, []bridge.TransferEvent{testTransfer()})
	assert.Equal(t, res.FraudDetected, len(res.Suspicious) > 0)

	claim := testClaim()
	claim.Amount = "1"
	res = Reconcile([]bridge.ClaimRecord{claim}, []bridge.TransferEvent{testTransfer()})
	assert.Equal(t, res.FraudDetected, len(res.Suspicious) > 0)
	assert.True(t, res.FraudDetected)
}
