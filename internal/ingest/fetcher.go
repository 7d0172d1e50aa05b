package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/tca/internal/types"
)

// Fetcher is the message-fetching primitive of spec.md §6's "minimal
// upstream client contract" — the part the spec leaves unspecified
// ("message-fetching primitives used by ingest (not specified here)").
// Implementations live outside this module (the external collaborator);
// the pipeline only ever depends on this narrow interface.
type Fetcher interface {
	// FetchSince returns messages for channel published after cursor,
	// honoring maxPages/maxMessages as upper bounds for one poll, and the
	// cursor to resume from on the next poll.
	FetchSince(ctx context.Context, channel types.Channel, cursor types.Cursor, maxPages, maxMessages int) ([]FetchedMessage, types.Cursor, error)
}

// FetchedMessage is one upstream message, already shaped for persistence:
// the raw payload alongside the fields the normalize step lifts into an
// Item.
type FetchedMessage struct {
	UpstreamMessageID int64
	PublishedAt       *time.Time
	Title             string
	Body              string
	CanonicalURL      string
	Payload           json.RawMessage
}

// UpstreamErrorKind classifies a Fetcher/auth error by kind rather than by
// concrete library type, per spec.md §6: "Errors the core must recognize
// by kind (not by library type)".
type UpstreamErrorKind string

const (
	UpstreamErrFloodWait          UpstreamErrorKind = "flood_wait"
	UpstreamErrInvalidCredentials UpstreamErrorKind = "invalid_credentials"
	UpstreamErrPhoneBanned        UpstreamErrorKind = "phone_banned"
	UpstreamErrCodeInvalid        UpstreamErrorKind = "code_invalid"
	UpstreamErrPasswordNeeded     UpstreamErrorKind = "password_needed"
	UpstreamErrPasswordInvalid    UpstreamErrorKind = "password_invalid"
	UpstreamErrSessionExpired     UpstreamErrorKind = "session_expired"
)

// UpstreamError wraps an upstream failure with its recognized kind.
// FloodWaitSeconds is only meaningful when Kind is UpstreamErrFloodWait.
type UpstreamError struct {
	Kind             UpstreamErrorKind
	FloodWaitSeconds int
	Cause            error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream error (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("upstream error (%s)", e.Kind)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// AsFloodWait reports whether err is an UpstreamError carrying a positive
// flood-wait duration, and returns the wait in seconds.
func AsFloodWait(err error) (seconds int, ok bool) {
	ue, match := err.(*UpstreamError)
	if !match || ue.Kind != UpstreamErrFloodWait || ue.FloodWaitSeconds <= 0 {
		return 0, false
	}
	return ue.FloodWaitSeconds, true
}
