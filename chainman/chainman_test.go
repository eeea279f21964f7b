package chainman

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridgelens-io/bridgelens/bridge"
)

type fakeClient struct {
	latestBlock uint64
	headerTime  uint64
	logs        []types.Log
	filterErr   error
	queries     []ethereum.FilterQuery
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	return f.latestBlock, nil
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: new(big.Int).SetUint64(f.latestBlock), Time: f.headerTime}, nil
}

func (f *fakeClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.queries = append(f.queries, q)
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []types.Log
	for _, lg := range f.logs {
		if len(q.Addresses) > 0 && lg.Address != q.Addresses[0] {
			continue
		}
		if len(q.Topics) > 0 && !topicAllowed(lg.Topics[0], q.Topics[0]) {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func topicAllowed(topic ethcommon.Hash, allowed []ethcommon.Hash) bool {
	for _, h := range allowed {
		if h == topic {
			return true
		}
	}
	return false
}

var (
	testBridgeAddr = ethcommon.HexToAddress("0x1000000000000000000000000000000000000001")
	testSender     = ethcommon.HexToAddress("0xAbC1230000000000000000000000000000000001")
	testRecipient  = ethcommon.HexToAddress("0xDef4560000000000000000000000000000000002")
	testClaimant   = ethcommon.HexToAddress("0x9999990000000000000000000000000000000003")
)

func testConfig() *Config {
	return &Config{
		Network:            "homechain",
		CounterpartNetwork: "farchain",
		RPCURLs:            []string{"fake://a"},
		Bridges:            []BridgeInstance{{Address: testBridgeAddr, Side: bridge.SideExport}},
		SecondsPerBlock:    12,
		CallTimeout:        time.Second,
	}
}

func newTestChainman(t *testing.T, cfg *Config, client Client) *Chainman {
	t.Helper()
	cm, err := NewWithClients(cfg, map[string]Client{"fake://a": client})
	require.NoError(t, err)
	return cm
}

func transferLog(t *testing.T, txHash ethcommon.Hash, blockNumber uint64, amount, reward int64) types.Log {
	t.Helper()
	data, err := BridgeABI.Events["TransferRequested"].Inputs.NonIndexed().Pack(
		testRecipient, big.NewInt(amount), big.NewInt(reward), big.NewInt(1719916800), []byte{0xde, 0xad},
	)
	require.NoError(t, err)
	return types.Log{
		Address:     testBridgeAddr,
		Topics:      []ethcommon.Hash{TransferRequestedSigHash, testSender.Hash()},
		Data:        data,
		TxHash:      txHash,
		BlockNumber: blockNumber,
	}
}

func claimCreatedLog(t *testing.T, claimNumber int64, refTx ethcommon.Hash, amount, reward int64) types.Log {
	t.Helper()
	data, err := BridgeABI.Events["ClaimCreated"].Inputs.NonIndexed().Pack(
		testSender, testRecipient, big.NewInt(amount), big.NewInt(reward),
		big.NewInt(1719916800), big.NewInt(1719920400), []byte{0xde, 0xad},
	)
	require.NoError(t, err)
	return types.Log{
		Address: testBridgeAddr,
		Topics: []ethcommon.Hash{
			ClaimCreatedSigHash,
			ethcommon.BigToHash(big.NewInt(claimNumber)),
			refTx,
			testClaimant.Hash(),
		},
		Data: data,
	}
}

func claimStakedLog(t *testing.T, claimNumber int64, inFavor bool, amount int64) types.Log {
	t.Helper()
	data, err := BridgeABI.Events["ClaimStaked"].Inputs.NonIndexed().Pack(inFavor, big.NewInt(amount))
	require.NoError(t, err)
	return types.Log{
		Address: testBridgeAddr,
		Topics: []ethcommon.Hash{
			ClaimStakedSigHash,
			ethcommon.BigToHash(big.NewInt(claimNumber)),
			testClaimant.Hash(),
		},
		Data: data,
	}
}

func claimFinishedLog(t *testing.T, claimNumber int64, outcome uint8) types.Log {
	t.Helper()
	data, err := BridgeABI.Events["ClaimFinished"].Inputs.NonIndexed().Pack(outcome)
	require.NoError(t, err)
	return types.Log{
		Address: testBridgeAddr,
		Topics: []ethcommon.Hash{
			ClaimFinishedSigHash,
			ethcommon.BigToHash(big.NewInt(claimNumber)),
		},
		Data: data,
	}
}

func TestFetchTransfers(t *testing.T) {
	txHash := ethcommon.HexToHash("0xaa11")
	client := &fakeClient{
		latestBlock: 10000,
		logs:        []types.Log{transferLog(t, txHash, 9990, 1000000, 300)},
	}
	cm := newTestChainman(t, testConfig(), client)

	transfers, err := cm.FetchTransfers(context.Background(), cm.Providers()[0], 24)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	tr := transfers[0]
	assert.Equal(t, txHash.Hex(), tr.SourceTxID)
	assert.Equal(t, "homechain", tr.SourceNetwork)
	assert.Equal(t, "farchain", tr.DestinationNetwork)
	assert.Equal(t, bridge.DirectionOutbound, tr.Direction)
	assert.Equal(t, "1000000", tr.Amount)
	assert.Equal(t, "300", tr.Reward)
	assert.Equal(t, "dead", tr.Data)
	assert.Equal(t, "1719916800", tr.Timestamp)
	assert.Equal(t, uint64(9990), tr.BlockNumber)
}

func TestFetchTransfersSkipsUndecodableLog(t *testing.T) {
	good := transferLog(t, ethcommon.HexToHash("0xaa11"), 9990, 5, 1)
	bad := types.Log{
		Address: testBridgeAddr,
		Topics:  []ethcommon.Hash{TransferRequestedSigHash, testSender.Hash()},
		Data:    []byte{0x01, 0x02}, // truncated
	}
	client := &fakeClient{latestBlock: 10000, logs: []types.Log{bad, good}}
	cm := newTestChainman(t, testConfig(), client)

	transfers, err := cm.FetchTransfers(context.Background(), cm.Providers()[0], 24)
	require.NoError(t, err)
	assert.Len(t, transfers, 1)
}

func TestFetchClaimsLifecycle(t *testing.T) {
	refTx := ethcommon.HexToHash("0xaa22")
	client := &fakeClient{
		latestBlock: 10000,
		logs: []types.Log{
			claimCreatedLog(t, 7, refTx, 1000000, 300),
			claimStakedLog(t, 7, true, 50),
			claimStakedLog(t, 7, true, 25),
			claimStakedLog(t, 7, false, 10),
			claimFinishedLog(t, 7, 1),
		},
	}
	cm := newTestChainman(t, testConfig(), client)

	claims, err := cm.FetchClaims(context.Background(), cm.Providers()[0], 24)
	require.NoError(t, err)
	require.Len(t, claims, 1)

	cl := claims[0]
	assert.Equal(t, uint64(7), cl.ClaimNumber)
	assert.Equal(t, refTx.Hex(), cl.ReferencedTxID)
	assert.Equal(t, "1000000", cl.Amount)
	assert.Equal(t, "75", cl.YesStake)
	assert.Equal(t, "10", cl.NoStake)
	assert.True(t, cl.Finished)
	assert.Equal(t, bridge.OutcomeYes, cl.CurrentOutcome)
	assert.False(t, cl.Withdrawn)
	assert.Equal(t, bridge.SideExport, cl.Side)
}

func TestFetchClaimsLimitKeepsNewest(t *testing.T) {
	cfg := testConfig()
	cfg.ClaimLimit = 2
	client := &fakeClient{
		latestBlock: 10000,
		logs: []types.Log{
			claimCreatedLog(t, 1, ethcommon.HexToHash("0x01"), 1, 0),
			claimCreatedLog(t, 2, ethcommon.HexToHash("0x02"), 2, 0),
			claimCreatedLog(t, 3, ethcommon.HexToHash("0x03"), 3, 0),
		},
	}
	cm := newTestChainman(t, cfg, client)

	claims, err := cm.FetchClaims(context.Background(), cm.Providers()[0], 24)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, uint64(2), claims[0].ClaimNumber)
	assert.Equal(t, uint64(3), claims[1].ClaimNumber)
}

func TestBlockWindow(t *testing.T) {
	client := &fakeClient{latestBlock: 100000}
	cm := newTestChainman(t, testConfig(), client)

	from, to, err := cm.BlockWindow(context.Background(), cm.Providers()[0], 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100000), to.Uint64())
	// one hour at 12s per block
	assert.Equal(t, uint64(100000-300), from.Uint64())

	// window larger than the chain clamps to genesis
	client.latestBlock = 10
	from, _, err = cm.BlockWindow(context.Background(), cm.Providers()[0], 24)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), from.Uint64())
}

func TestChainTime(t *testing.T) {
	client := &fakeClient{latestBlock: 5, headerTime: 1719916800}
	cm := newTestChainman(t, testConfig(), client)

	now, err := cm.ChainTime(context.Background(), cm.Providers()[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1719916800), now)
}
