package model

import (
	"crypto/rand"
	"fmt"
	"io"
	"sort"

	"voice-clone-studio/internal/domain"
)

const (
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 16

	// MaxCodeLength matches the width of the code column.
	MaxCodeLength = 50
)

// CodeGenerator produces candidate activation codes.
type CodeGenerator func() (string, error)

// GenerateActivationCode returns a random 16-character code over A-Z0-9
// read from crypto/rand.
func GenerateActivationCode() (string, error) {
	return GenerateActivationCodeFrom(rand.Reader)
}

// GenerateActivationCodeFrom draws from r with rejection sampling so every
// symbol is equally likely.
func GenerateActivationCodeFrom(r io.Reader) (string, error) {
	// largest multiple of len(CodeAlphabet) that fits in a byte
	const limit = 256 - 256%len(CodeAlphabet)

	out := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(out) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, CodeAlphabet[int(b)%len(CodeAlphabet)])
			if len(out) == CodeLength {
				break
			}
		}
	}
	return string(out), nil
}

// ValidateImportCode checks an operator-supplied code in canonical form.
func ValidateImportCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty activation code", domain.ErrInvalidArgument)
	}
	if len(code) > MaxCodeLength {
		return fmt.Errorf("%w: activation code longer than %d characters", domain.ErrInvalidArgument, MaxCodeLength)
	}
	return nil
}

// SortNewestFirst orders by created_at descending, then by code.
func SortNewestFirst(infos []*ActivationInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].Code < infos[j].Code
	})
}
