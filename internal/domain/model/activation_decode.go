package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DecodeRecord coerces one loosely typed JSON record (hand-edited files,
// seed documents, older versions) into a normalized ActivationRecord.
// Malformed fields take their defaults; decoding never fails.
func DecodeRecord(code string, raw json.RawMessage) ActivationRecord {
	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		fields = map[string]any{}
	}

	r := ActivationRecord{
		Code:           code,
		MaxVoices:      coerceInt(fields["max_voices"]),
		UsedVoices:     coerceInt(fields["used_voices"]),
		MaxCharacters:  coerceInt(fields["max_characters"]),
		UsedCharacters: coerceInt(fields["used_characters"]),
		Disabled:       coerceBool(fields["disabled"]),
		Note:           coerceString(fields["note"]),
	}
	if s, ok := fields["expires_at"].(string); ok {
		r.ExpiresAt = ParseDate(s)
	}
	if s, ok := fields["created_at"].(string); ok {
		if t, ok := parseTimestamp(strings.TrimSpace(s)); ok {
			r.CreatedAt = t
		}
	}
	if s, ok := fields["last_used_at"].(string); ok {
		if t, ok := parseTimestamp(strings.TrimSpace(s)); ok {
			r.LastUsedAt = &t
		}
	}
	r.Normalize()
	return r
}

// DecodeDocument reads a {"codes": {...}} document. A document that is not
// an object or has no codes object yields an empty map. Keys that collide
// after canonicalization resolve the same way on every load: the key already
// in canonical form wins, otherwise the lexically smallest key.
func DecodeDocument(data []byte) (map[string]ActivationRecord, error) {
	out := map[string]ActivationRecord{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return out, fmt.Errorf("decode codes document: %w", err)
	}
	var codes map[string]json.RawMessage
	if err := json.Unmarshal(doc["codes"], &codes); err != nil || codes == nil {
		return out, nil
	}
	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fromCanonical := map[string]bool{}
	for _, key := range keys {
		rec := DecodeRecord(key, codes[key])
		if rec.Code == "" {
			continue
		}
		canonical := key == rec.Code
		if _, seen := out[rec.Code]; seen && (fromCanonical[rec.Code] || !canonical) {
			continue
		}
		out[rec.Code] = rec
		fromCanonical[rec.Code] = canonical
	}
	return out, nil
}

func coerceInt(v any) int {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return clampInt64(n)
		}
		if f, err := x.Float64(); err == nil {
			return truncFloat(f)
		}
	case float64:
		return truncFloat(x)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return clampInt64(n)
		}
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func coerceBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	}
	return false
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func truncFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < 0 {
		return 0
	}
	return int(f)
}

func clampInt64(n int64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

// EncodeTime renders timestamps the way records are persisted.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
