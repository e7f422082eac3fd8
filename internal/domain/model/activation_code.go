package model

import (
	"math"
	"strings"
	"time"
)

// ActivationRecord is the stored state of one activation code.
// A zero cap (MaxVoices, MaxCharacters) means unlimited in that dimension.
type ActivationRecord struct {
	Code           string
	MaxVoices      int
	UsedVoices     int
	MaxCharacters  int
	UsedCharacters int
	ExpiresAt      *Date
	Disabled       bool
	Note           string
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}

// ActivationInfo is the derived, read-only view handed to callers.
// AvailableVoices and RemainingCharacters are nil when the dimension is unlimited.
type ActivationInfo struct {
	Code                string     `json:"code"`
	MaxVoices           int        `json:"max_voices"`
	UsedVoices          int        `json:"used_voices"`
	AvailableVoices     *int       `json:"available_voices"`
	MaxCharacters       int        `json:"max_characters"`
	UsedCharacters      int        `json:"used_characters"`
	RemainingCharacters *int       `json:"remaining_characters"`
	ExpiresAt           *Date      `json:"expires_at"`
	Expired             bool       `json:"expired"`
	Disabled            bool       `json:"disabled"`
	Note                string     `json:"note"`
	CreatedAt           time.Time  `json:"created_at"`
	LastUsedAt          *time.Time `json:"last_used_at"`
}

// NewCode carries the caller-supplied limits for a generated code.
type NewCode struct {
	MaxVoices     int
	MaxCharacters int
	ExpiresAt     *Date
	Note          string
}

// CodePatch is a sparse update; nil fields are left untouched.
// ExpiresAt set to "" (or anything that is not a date) clears the expiry.
type CodePatch struct {
	MaxVoices     *int
	MaxCharacters *int
	ExpiresAt     *string
	Note          *string
	Disabled      *bool
}

func (p CodePatch) IsEmpty() bool {
	return p.MaxVoices == nil && p.MaxCharacters == nil && p.ExpiresAt == nil && p.Note == nil && p.Disabled == nil
}

// Apply mutates r in place and leaves it normalized.
func (p CodePatch) Apply(r *ActivationRecord) {
	if p.MaxVoices != nil {
		r.MaxVoices = *p.MaxVoices
	}
	if p.MaxCharacters != nil {
		r.MaxCharacters = *p.MaxCharacters
	}
	if p.ExpiresAt != nil {
		r.ExpiresAt = ParseDate(*p.ExpiresAt)
	}
	if p.Note != nil {
		r.Note = *p.Note
	}
	if p.Disabled != nil {
		r.Disabled = *p.Disabled
	}
	r.Normalize()
}

// CanonicalCode is the lookup form of a user-typed code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewActivationRecord builds the initial record for a freshly generated code.
func NewActivationRecord(code string, params NewCode, now time.Time) ActivationRecord {
	r := ActivationRecord{
		Code:          code,
		MaxVoices:     params.MaxVoices,
		MaxCharacters: params.MaxCharacters,
		ExpiresAt:     params.ExpiresAt,
		Note:          params.Note,
		CreatedAt:     now.UTC(),
	}
	r.Normalize()
	return r
}

// Normalize clamps counters and canonicalizes fields. It is idempotent.
func (r *ActivationRecord) Normalize() {
	r.Code = CanonicalCode(r.Code)
	r.MaxVoices = clampUsed(r.MaxVoices, 0)
	r.UsedVoices = clampUsed(r.UsedVoices, r.MaxVoices)
	r.MaxCharacters = clampUsed(r.MaxCharacters, 0)
	r.UsedCharacters = clampUsed(r.UsedCharacters, r.MaxCharacters)
	r.Note = strings.TrimSpace(r.Note)
	if r.ExpiresAt != nil && r.ExpiresAt.IsZero() {
		r.ExpiresAt = nil
	}
	if !r.CreatedAt.IsZero() {
		r.CreatedAt = r.CreatedAt.UTC()
	}
	if r.LastUsedAt != nil {
		if r.LastUsedAt.IsZero() {
			r.LastUsedAt = nil
		} else {
			u := r.LastUsedAt.UTC()
			r.LastUsedAt = &u
		}
	}
}

// AddUsage records one successful paid operation against r.
func (r *ActivationRecord) AddUsage(characters int, createdVoice bool, now time.Time) {
	if characters > 0 {
		r.UsedCharacters += characters
	}
	if createdVoice {
		r.UsedVoices++
	}
	ts := now.UTC()
	r.LastUsedAt = &ts
	r.Normalize()
}

// Info derives the caller view of r as of the given day.
func (r ActivationRecord) Info(today Date) *ActivationInfo {
	info := &ActivationInfo{
		Code:           r.Code,
		MaxVoices:      r.MaxVoices,
		UsedVoices:     r.UsedVoices,
		MaxCharacters:  r.MaxCharacters,
		UsedCharacters: r.UsedCharacters,
		Disabled:       r.Disabled,
		Note:           r.Note,
		CreatedAt:      r.CreatedAt,
	}
	if r.MaxVoices > 0 {
		v := atLeastZero(r.MaxVoices - r.UsedVoices)
		info.AvailableVoices = &v
	}
	if r.MaxCharacters > 0 {
		c := atLeastZero(r.MaxCharacters - r.UsedCharacters)
		info.RemainingCharacters = &c
	}
	if r.ExpiresAt != nil {
		d := *r.ExpiresAt
		info.ExpiresAt = &d
		info.Expired = today.After(d)
	}
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		info.LastUsedAt = &t
	}
	return info
}

// Record strips the derived fields from i.
func (i *ActivationInfo) Record() ActivationRecord {
	r := ActivationRecord{
		Code:           i.Code,
		MaxVoices:      i.MaxVoices,
		UsedVoices:     i.UsedVoices,
		MaxCharacters:  i.MaxCharacters,
		UsedCharacters: i.UsedCharacters,
		ExpiresAt:      i.ExpiresAt,
		Disabled:       i.Disabled,
		Note:           i.Note,
		CreatedAt:      i.CreatedAt,
		LastUsedAt:     i.LastUsedAt,
	}
	r.Normalize()
	return r
}

// Exhausted reports whether a character cap is set and fully used. A code
// with voice quota but no characters left cannot synthesize anything; one
// with characters but no voices can still use a saved voice.
func (i *ActivationInfo) Exhausted() bool {
	return i.RemainingCharacters != nil && *i.RemainingCharacters <= 0
}

func atLeastZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// maxCounter is the widest value an INTEGER column holds.
const maxCounter = math.MaxInt32

func clampUsed(used, limit int) int {
	used = atLeastZero(used)
	if limit > 0 && used > limit {
		return limit
	}
	if used > maxCounter {
		return maxCounter
	}
	return used
}
