package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrStorageUnavailable = errors.New("ledger storage unavailable")

	// Activation codes
	ErrCodeNotFound       = errors.New("activation code not found")
	ErrCodeSpaceExhausted = errors.New("could not generate a unique activation code")

	// Voice cloning
	ErrEmptyText         = errors.New("text to synthesize is empty")
	ErrReferenceAudio    = errors.New("reference audio required")
	ErrReferenceTooLarge = errors.New("reference audio exceeds size limit")
	ErrInvalidEmotion    = errors.New("invalid emotion settings")
	ErrAPIKeyMissing     = errors.New("speech api key not configured")
	ErrSpeechUpstream    = errors.New("speech api request failed")
)
