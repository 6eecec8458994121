package claim

import (
	"math"
	"sort"
	"strconv"
	"unicode/utf8"
)

// FormatVersion identifies the canonical serialization rule set below.
//
// The canonical form is a versioned contract shared byte-for-byte by the
// submitter and the verifier; any rule change requires a version bump and a
// coordinated rollout of both sides.
const FormatVersion = 1

// Canonical serialization rules (v1):
//
//   - JSON with minimal separators: "," and ":" only, no whitespace.
//   - Object keys sorted bytewise ascending; duplicate keys rejected.
//   - Strings are UTF-8 verbatim, escaping only `"`, `\` and control
//     characters (short escapes \b \f \n \r \t, otherwise \u00XX).
//   - int/uint render in plain decimal. Floats use the shortest
//     representation that round-trips, fixed-point unless the magnitude is
//     below 1e-6 or at least 1e21, in which case exponent form with the
//     exponent zero-padding trimmed (e-07 becomes e-7).
//   - NaN and infinities are rejected.
//
// appendCanonical is the single choke point: claim signing, verification,
// and artifact hyperparameter files all pass through it.
func appendCanonical(dst []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...), nil
	case KindBool:
		if v.b {
			return append(dst, "true"...), nil
		}
		return append(dst, "false"...), nil
	case KindInt:
		return strconv.AppendInt(dst, v.i, 10), nil
	case KindUint:
		return strconv.AppendUint(dst, v.u, 10), nil
	case KindFloat:
		return appendCanonicalFloat(dst, v.f)
	case KindString:
		return appendCanonicalString(dst, v.s)
	case KindList:
		dst = append(dst, '[')
		for i, elem := range v.list {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			dst, err = appendCanonical(dst, elem)
			if err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case KindMap:
		keys := make([]string, len(v.m))
		byKey := make(map[string]Value, len(v.m))
		for i, e := range v.m {
			if _, dup := byKey[e.Key]; dup {
				return nil, newError(KindCanonical, "CW-CANON-002", "duplicate map key "+strconv.Quote(e.Key))
			}
			keys[i] = e.Key
			byKey[e.Key] = e.Value
		}
		sort.Strings(keys)
		dst = append(dst, '{')
		for i, k := range keys {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			dst, err = appendCanonicalString(dst, k)
			if err != nil {
				return nil, err
			}
			dst = append(dst, ':')
			dst, err = appendCanonical(dst, byKey[k])
			if err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	default:
		return nil, newError(KindInternal, "CW-CANON-001", "invalid value kind")
	}
}

func appendCanonicalFloat(dst []byte, f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, newError(KindCanonical, "CW-CANON-003", "non-finite float not representable")
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	dst = strconv.AppendFloat(dst, f, format, -1, 64)
	if format == 'e' {
		// Trim a zero-padded exponent: e-07 becomes e-7.
		n := len(dst)
		if n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst, nil
}

const hexDigits = "0123456789abcdef"

func appendCanonicalString(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, newError(KindCanonical, "CW-CANON-004", "string is not valid UTF-8")
	}
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			dst = append(dst, '\\', '"')
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c >= 0x20:
			dst = append(dst, c)
		case c == '\b':
			dst = append(dst, '\\', 'b')
		case c == '\f':
			dst = append(dst, '\\', 'f')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
	}
	return append(dst, '"'), nil
}

// Canonical returns the canonical serialization of v.
func Canonical(v Value) ([]byte, error) {
	return appendCanonical(nil, v)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
