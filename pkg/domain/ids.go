package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "japa/pkg/domain-errors"
)

// ProfileID identifies the owner of a ledger. It is an opaque stable
// identifier minted by the external identity system; the ledger validates
// shape at trust boundaries but assigns no meaning to the contents.
type ProfileID string

// maxProfileIDLen bounds identifiers so they stay usable as storage keys.
const maxProfileIDLen = 128

// ParseProfileID validates and returns a ProfileID.
// Rejects empty, oversized, and control-character identifiers.
func ParseProfileID(s string) (ProfileID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidProfile, "profile id must not be empty")
	}
	if len(trimmed) > maxProfileIDLen {
		return "", dErrors.New(dErrors.CodeInvalidProfile, "profile id exceeds maximum length")
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidProfile, "profile id contains control characters")
		}
	}
	return ProfileID(trimmed), nil
}

// String returns the string representation of the profile ID.
func (p ProfileID) String() string {
	return string(p)
}

// IsNil returns true if the profile ID is empty.
func (p ProfileID) IsNil() bool {
	return p == ""
}

// EventID identifies a single repetition event. Assigned by the ledger at
// append time.
type EventID uuid.UUID

// NewEventID returns a fresh random event ID.
func NewEventID() EventID {
	return EventID(uuid.New())
}

// ParseEventID validates and returns an EventID.
func ParseEventID(s string) (EventID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil || parsed == uuid.Nil {
		return EventID{}, dErrors.New(dErrors.CodeInvalidInput, "event id must be a valid non-nil UUID")
	}
	return EventID(parsed), nil
}

// String returns the canonical UUID string.
func (e EventID) String() string {
	return uuid.UUID(e).String()
}

// IsNil returns true if the event ID is the zero UUID.
func (e EventID) IsNil() bool {
	return uuid.UUID(e) == uuid.Nil
}

// Source identifies the input modality that produced a repetition event.
type Source string

const (
	// SourceManual is a tap recorded directly by the user.
	SourceManual Source = "manual"
	// SourceAudio is a chant recognized by the audio detector.
	SourceAudio Source = "audio"
)

// ParseSource validates and returns a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceManual, SourceAudio:
		return Source(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "source must be manual or audio")
	}
}

// String returns the string representation of the source.
func (s Source) String() string {
	return string(s)
}
