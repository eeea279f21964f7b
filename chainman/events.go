package chainman

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/canon"
)

// Bridge contract events. Transfers are immutable requests on the source
// side; a claim's lifecycle is reconstructed from its create/stake/finish/
// withdraw events in log order.
var (
	TransferRequestedSigHash = crypto.Keccak256Hash([]byte("TransferRequested(address,address,uint256,uint256,uint256,bytes)"))
	ClaimCreatedSigHash      = crypto.Keccak256Hash([]byte("ClaimCreated(uint256,bytes32,address,address,address,uint256,uint256,uint256,uint256,bytes)"))
	ClaimStakedSigHash       = crypto.Keccak256Hash([]byte("ClaimStaked(uint256,address,bool,uint256)"))
	ClaimFinishedSigHash     = crypto.Keccak256Hash([]byte("ClaimFinished(uint256,uint8)"))
	ClaimWithdrawnSigHash    = crypto.Keccak256Hash([]byte("ClaimWithdrawn(uint256)"))
)

const bridgeEventsABI = `[
  {"type":"event","name":"TransferRequested","inputs":[
    {"name":"sender","type":"address","indexed":true},
    {"name":"recipient","type":"address","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"reward","type":"uint256","indexed":false},
    {"name":"requestedAt","type":"uint256","indexed":false},
    {"name":"data","type":"bytes","indexed":false}]},
  {"type":"event","name":"ClaimCreated","inputs":[
    {"name":"claimNumber","type":"uint256","indexed":true},
    {"name":"transferTxId","type":"bytes32","indexed":true},
    {"name":"claimant","type":"address","indexed":true},
    {"name":"sender","type":"address","indexed":false},
    {"name":"recipient","type":"address","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"reward","type":"uint256","indexed":false},
    {"name":"transferredAt","type":"uint256","indexed":false},
    {"name":"expiry","type":"uint256","indexed":false},
    {"name":"data","type":"bytes","indexed":false}]},
  {"type":"event","name":"ClaimStaked","inputs":[
    {"name":"claimNumber","type":"uint256","indexed":true},
    {"name":"staker","type":"address","indexed":true},
    {"name":"inFavor","type":"bool","indexed":false},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"ClaimFinished","inputs":[
    {"name":"claimNumber","type":"uint256","indexed":true},
    {"name":"outcome","type":"uint8","indexed":false}]},
  {"type":"event","name":"ClaimWithdrawn","inputs":[
    {"name":"claimNumber","type":"uint256","indexed":true}]}
]`

// BridgeABI is the parsed event ABI of the observed bridge contracts.
var BridgeABI = mustParseABI(bridgeEventsABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// decodeTransfer turns one TransferRequested log into a TransferEvent. The
// source tx id is the hash of the transaction that emitted the log.
func decodeTransfer(lg types.Log, inst BridgeInstance, cfg *Config) (bridge.TransferEvent, error) {
	if len(lg.Topics) < 2 {
		return bridge.TransferEvent{}, errors.New("transfer log missing sender topic")
	}

	var ev struct {
		Recipient   ethcommon.Address
		Amount      *big.Int
		Reward      *big.Int
		RequestedAt *big.Int
		Data        []byte
	}
	if err := BridgeABI.UnpackIntoInterface(&ev, "TransferRequested", lg.Data); err != nil {
		return bridge.TransferEvent{}, errors.Wrap(err, "unpack TransferRequested")
	}

	direction := bridge.DirectionOutbound
	if inst.Side == bridge.SideImport {
		direction = bridge.DirectionInbound
	}

	sender, _ := canon.Address(ethcommon.BytesToAddress(lg.Topics[1].Bytes()))
	recipient, _ := canon.Address(ev.Recipient)
	data, _ := canon.Data(ev.Data)

	return bridge.TransferEvent{
		SourceTxID:         lg.TxHash.Hex(),
		SourceNetwork:      cfg.Network,
		DestinationNetwork: cfg.CounterpartNetwork,
		Direction:          direction,
		Sender:             sender,
		Recipient:          recipient,
		Amount:             ev.Amount.String(),
		Reward:             ev.Reward.String(),
		Data:               data,
		Timestamp:          ev.RequestedAt.String(),
		BlockNumber:        lg.BlockNumber,
	}, nil
}

// claimSet accumulates claim lifecycle events into snapshots, keyed by
// (bridge address, claim number). Logs must be applied in log order.
type claimSet struct {
	byKey map[bridge.ClaimKey]*bridge.ClaimRecord
	order []bridge.ClaimKey
}

func newClaimSet() *claimSet {
	return &claimSet{byKey: map[bridge.ClaimKey]*bridge.ClaimRecord{}}
}

func (cs *claimSet) apply(lg types.Log, inst BridgeInstance, cfg *Config) error {
	if len(lg.Topics) < 2 {
		return errors.New("claim log missing claim number topic")
	}
	claimNumber := new(big.Int).SetBytes(lg.Topics[1].Bytes())
	if !claimNumber.IsUint64() {
		return errors.Errorf("claim number out of range: %s", claimNumber)
	}
	key := bridge.ClaimKey{
		BridgeAddress: strings.ToLower(inst.Address.Hex()),
		ClaimNumber:   claimNumber.Uint64(),
	}

	switch lg.Topics[0] {
	case ClaimCreatedSigHash:
		return cs.applyCreated(key, lg, inst, cfg)
	case ClaimStakedSigHash:
		return cs.applyStaked(key, lg)
	case ClaimFinishedSigHash:
		return cs.applyFinished(key, lg)
	case ClaimWithdrawnSigHash:
		rec, ok := cs.byKey[key]
		if !ok {
			return errors.Errorf("withdraw for unknown %v", key)
		}
		rec.Withdrawn = true
		return nil
	default:
		return errors.Errorf("unexpected claim topic %s", lg.Topics[0].Hex())
	}
}

func (cs *claimSet) applyCreated(key bridge.ClaimKey, lg types.Log, inst BridgeInstance, cfg *Config) error {
	if len(lg.Topics) < 4 {
		return errors.New("ClaimCreated log missing topics")
	}
	var ev struct {
		Sender        ethcommon.Address
		Recipient     ethcommon.Address
		Amount        *big.Int
		Reward        *big.Int
		TransferredAt *big.Int
		Expiry        *big.Int
		Data          []byte
	}
	if err := BridgeABI.UnpackIntoInterface(&ev, "ClaimCreated", lg.Data); err != nil {
		return errors.Wrap(err, "unpack ClaimCreated")
	}

	claimant, _ := canon.Address(ethcommon.BytesToAddress(lg.Topics[3].Bytes()))
	sender, _ := canon.Address(ev.Sender)
	recipient, _ := canon.Address(ev.Recipient)
	data, _ := canon.Data(ev.Data)

	rec := &bridge.ClaimRecord{
		ClaimNumber:     key.ClaimNumber,
		BridgeAddress:   key.BridgeAddress,
		Network:         cfg.Network,
		Side:            inst.Side,
		ReferencedTxID:  ethcommon.BytesToHash(lg.Topics[2].Bytes()).Hex(),
		Claimant:        claimant,
		Recipient:       recipient,
		Amount:          ev.Amount.String(),
		Reward:          ev.Reward.String(),
		Data:            data,
		SenderAsClaimed: sender,
		Timestamp:       ev.TransferredAt.String(),
		CurrentOutcome:  bridge.OutcomeUndetermined,
		YesStake:        "0",
		NoStake:         "0",
		ExpiryTimestamp: ev.Expiry.String(),
	}
	if _, exists := cs.byKey[key]; !exists {
		cs.order = append(cs.order, key)
	}
	cs.byKey[key] = rec
	return nil
}

func (cs *claimSet) applyStaked(key bridge.ClaimKey, lg types.Log) error {
	rec, ok := cs.byKey[key]
	if !ok {
		return errors.Errorf("stake for unknown %v", key)
	}
	var ev struct {
		InFavor bool
		Amount  *big.Int
	}
	if err := BridgeABI.UnpackIntoInterface(&ev, "ClaimStaked", lg.Data); err != nil {
		return errors.Wrap(err, "unpack ClaimStaked")
	}
	if ev.InFavor {
		rec.YesStake = addDecimal(rec.YesStake, ev.Amount)
	} else {
		rec.NoStake = addDecimal(rec.NoStake, ev.Amount)
	}
	return nil
}

func (cs *claimSet) applyFinished(key bridge.ClaimKey, lg types.Log) error {
	rec, ok := cs.byKey[key]
	if !ok {
		return errors.Errorf("finish for unknown %v", key)
	}
	var ev struct {
		Outcome uint8
	}
	if err := BridgeABI.UnpackIntoInterface(&ev, "ClaimFinished", lg.Data); err != nil {
		return errors.Wrap(err, "unpack ClaimFinished")
	}
	rec.Finished = true
	switch ev.Outcome {
	case 1:
		rec.CurrentOutcome = bridge.OutcomeYes
	case 2:
		rec.CurrentOutcome = bridge.OutcomeNo
	default:
		rec.CurrentOutcome = bridge.OutcomeUndetermined
	}
	return nil
}

// records returns the accumulated snapshots in first-seen order.
func (cs *claimSet) records() []bridge.ClaimRecord {
	out := make([]bridge.ClaimRecord, 0, len(cs.order))
	for _, key := range cs.order {
		out = append(out, *cs.byKey[key])
	}
	return out
}

func addDecimal(current string, delta *big.Int) string {
	base, ok := new(big.Int).SetString(current, 10)
	if !ok {
		base = new(big.Int)
	}
	return new(big.Int).Add(base, delta).String()
}
