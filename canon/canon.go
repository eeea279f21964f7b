// Package canon converts the heterogeneous value encodings seen in raw
// chain records (decimal strings, hex strings, native integers, structured
// big-integer objects) into single comparable canonical forms. Every other
// package compares canonical forms only; nothing else branches on raw shape.
package canon

import (
	"math"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/bridgelens-io/bridgelens/common"
)

// Sentinels returned for unrecognized inputs. Callers must check the
// companion recognized flag: a sentinel with recognized == false means
// "could not parse", which is not the same thing as an actual zero.
const (
	ZeroAmount   = "0"
	ZeroAddress  = ""
	ZeroData     = ""
	zeroUnixTime = int64(0)
)

// Amount canonicalizes any recognized numeric encoding to a
// precision-preserving decimal string. Never panics.
func Amount(v interface{}) (string, bool) {
	b, ok := toBigInt(v)
	if !ok {
		return ZeroAmount, false
	}
	return b.String(), true
}

// Timestamp canonicalizes any recognized numeric encoding to epoch seconds.
func Timestamp(v interface{}) (int64, bool) {
	b, ok := toBigInt(v)
	if !ok {
		return zeroUnixTime, false
	}
	if !b.IsInt64() {
		return zeroUnixTime, false
	}
	return b.Int64(), true
}

// Address canonicalizes an address encoding to lowercase 0x-prefixed hex.
// Malformed input yields the empty sentinel, never an error.
func Address(v interface{}) (string, bool) {
	switch a := v.(type) {
	case nil:
		return ZeroAddress, false
	case string:
		s := strings.TrimSpace(a)
		s = common.Trim0xPrefix(s)
		if len(s) != ethcommon.AddressLength*2 || !common.IsHexStr(s) {
			return ZeroAddress, false
		}
		return "0x" + strings.ToLower(s), true
	case ethcommon.Address:
		return strings.ToLower(a.Hex()), true
	case *ethcommon.Address:
		if a == nil {
			return ZeroAddress, false
		}
		return strings.ToLower(a.Hex()), true
	case []byte:
		if len(a) != ethcommon.AddressLength {
			return ZeroAddress, false
		}
		return strings.ToLower(ethcommon.BytesToAddress(a).Hex()), true
	default:
		return ZeroAddress, false
	}
}

// Data canonicalizes an opaque hex payload to lowercase hex without the 0x
// prefix. "0x" and "" both canonicalize to the empty payload.
func Data(v interface{}) (string, bool) {
	switch d := v.(type) {
	case nil:
		return ZeroData, false
	case string:
		s := common.Trim0xPrefix(strings.TrimSpace(d))
		if s == "" {
			return ZeroData, true
		}
		if len(s)%2 != 0 {
			s = "0" + s
		}
		if !common.IsHexStr(s) {
			return ZeroData, false
		}
		return strings.ToLower(s), true
	case []byte:
		return ethcommon.Bytes2Hex(d), true
	default:
		return ZeroData, false
	}
}

// AddrFormat describes how a raw address string was written, used to tell
// cosmetic formatting differences apart from genuinely different addresses.
type AddrFormat int

const (
	AddrFormatUnknown AddrFormat = iota
	AddrFormatLower
	AddrFormatUpper
	AddrFormatChecksum
	AddrFormatOther
)

// AddressFormat inspects a raw address string. It never rejects input; an
// unparseable string is simply AddrFormatUnknown.
func AddressFormat(raw string) AddrFormat {
	s := common.Trim0xPrefix(strings.TrimSpace(raw))
	if len(s) != ethcommon.AddressLength*2 || !common.IsHexStr(s) {
		return AddrFormatUnknown
	}
	switch {
	case s == strings.ToLower(s):
		return AddrFormatLower
	case s == strings.ToUpper(s):
		return AddrFormatUpper
	}
	// Mixed case: either a valid EIP-55 checksum or a typo.
	if "0x"+s == ethcommon.HexToAddress(s).Hex() {
		return AddrFormatChecksum
	}
	return AddrFormatOther
}

// toBigInt is the single place that sniffs numeric value shapes.
func toBigInt(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case nil:
		return nil, false
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case int:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case float64:
		// JSON numbers arrive as float64; only integral values inside the
		// exactly-representable range are trustworthy.
		if n != math.Trunc(n) || math.Abs(n) >= 1<<53 {
			return nil, false
		}
		return big.NewInt(int64(n)), true
	case string:
		return parseNumericString(n)
	case map[string]interface{}:
		// Structured big-integer representation carrying a hex field.
		for _, k := range []string{"hex", "Hex", "_hex"} {
			if raw, found := n[k]; found {
				if s, isStr := raw.(string); isStr {
					return parseHexString(s)
				}
			}
		}
		return nil, false
	case map[string]string:
		for _, k := range []string{"hex", "Hex", "_hex"} {
			if s, found := n[k]; found {
				return parseHexString(s)
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

func parseNumericString(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return parseHexString(s)
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return b, true
}

func parseHexString(s string) (*big.Int, bool) {
	s = common.Trim0xPrefix(strings.TrimSpace(s))
	if s == "" {
		return nil, false
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	b, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, false
	}
	if neg {
		b.Neg(b)
	}
	return b, true
}
