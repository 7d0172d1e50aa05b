// Package types defines the core data structures shared across tca's
// ingest, dedupe, scheduler, and storage packages.
package types

import (
	"encoding/json"
	"time"
)

// Account owns a set of channels polled through one upstream Telegram
// session. APIHash and Session are envelope-encrypted ciphertext; plaintext
// never touches this struct once persisted.
type Account struct {
	ID          int64
	APIID       int64
	APIHashCT   []byte
	SessionCT   []byte
	KeyVersion  int
	PausedAt    *time.Time
	PauseReason string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsPaused reports whether the owning account is currently paused, in which
// case none of its channels are schedulable.
func (a *Account) IsPaused() bool {
	return a.PausedAt != nil
}

// Channel is one upstream Telegram channel owned by an Account.
type Channel struct {
	ID                int64
	AccountID         int64
	UpstreamChannelID int64
	Name              string
	Username          string
	IsEnabled         bool
	GroupID           *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Cursor is the JSON-encoded progress marker for one channel's upstream
// stream; it is decoded with encoding/json and not checked against a
// schema. See ChannelState.
type Cursor struct {
	LastMessageID int64      `json:"last_message_id"`
	NextOffsetID  int64      `json:"next_offset_id"`
	LastPolledAt  *time.Time `json:"last_polled_at"`
}

// ChannelState is the 1:1 polling state attached to a Channel.
type ChannelState struct {
	ChannelID     int64
	Cursor        Cursor
	PausedUntil   *time.Time
	LastSuccessAt *time.Time
	UpdatedAt     time.Time
}

// Group clusters channels under a shared dedupe horizon override.
type Group struct {
	ID                           int64
	Name                         string
	Description                  string
	DedupeHorizonMinutesOverride *int
	CreatedAt                    time.Time
}

// RawMessage is the unmodified upstream payload captured before
// normalization. (ChannelID, UpstreamMessageID) is unique.
type RawMessage struct {
	ID                int64
	ChannelID         int64
	UpstreamMessageID int64
	PayloadJSON       json.RawMessage
	CreatedAt         time.Time
}

// DedupeState is the lifecycle state of an Item within the dedupe engine.
type DedupeState string

const (
	DedupeStatePending DedupeState = "pending"
	DedupeStateDone    DedupeState = "done"
	DedupeStateFailed  DedupeState = "failed"
)

// Item is a normalized unit of upstream content. (ChannelID,
// UpstreamMessageID) is unique; at most one cluster membership exists once
// dedupe completes successfully.
type Item struct {
	ID                int64
	ChannelID         int64
	UpstreamMessageID int64
	RawMessageID      *int64
	PublishedAt       *time.Time
	Title             string
	Body              string
	CanonicalURL      string
	CanonicalURLHash  string
	ContentHash       string
	DedupeState       DedupeState
	CreatedAt         time.Time
}

// Cluster is a set of Items deemed duplicates, with one representative.
// An empty cluster (no members) must not persist past a prune run.
type Cluster struct {
	ID                   int64
	ClusterKey           string
	RepresentativeItemID *int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Member is the (cluster_id, item_id) join row; an item belongs to at most
// one cluster.
type Member struct {
	ClusterID int64
	ItemID    int64
	CreatedAt time.Time
}

// DecisionOutcome is the result of one dedupe strategy attempt.
type DecisionOutcome string

const (
	OutcomeDuplicate DecisionOutcome = "DUPLICATE"
	OutcomeDistinct  DecisionOutcome = "DISTINCT"
	OutcomeAbstain   DecisionOutcome = "ABSTAIN"
)

// Decision is an immutable, append-only record of one strategy attempt
// against one item. The primary explainability surface for dedupe.
type Decision struct {
	ID              int64
	ItemID          int64
	ClusterID       *int64
	CandidateItemID *int64
	StrategyName    string
	Outcome         DecisionOutcome
	ReasonCode      string
	Score           *float64
	Metadata        map[string]any
	CreatedAt       time.Time
}

// Setting is one process-wide dynamic configuration row. Value is always
// finite JSON (no NaN/Inf).
type Setting struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}

// NotificationSeverity ranks operator-visible events.
type NotificationSeverity string

const (
	SeverityLow    NotificationSeverity = "low"
	SeverityMedium NotificationSeverity = "medium"
	SeverityHigh   NotificationSeverity = "high"
)

// Notification is an operator-visible event. Acknowledgement is idempotent.
type Notification struct {
	ID             int64
	Type           string
	Severity       NotificationSeverity
	Message        string
	Payload        json.RawMessage
	IsAcknowledged bool
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
}

// IngestStage names the pipeline stage an IngestError occurred in.
type IngestStage string

const (
	StageFetch     IngestStage = "fetch"
	StageNormalize IngestStage = "normalize"
	StageDedupe    IngestStage = "dedupe"
	StageAuth      IngestStage = "auth"
)

// IngestError is an ingest-failure audit row; stage failures that can
// recover record one of these and continue.
type IngestError struct {
	ID           int64
	ChannelID    *int64
	Stage        IngestStage
	ErrorCode    string
	ErrorMessage string
	PayloadRef   string
	CreatedAt    time.Time
}

// PollJob is a unit of work the scheduler hands to the ingest pipeline.
// CorrelationID uniquely tags one scheduler tick's intent for one channel.
type PollJob struct {
	ID            int64
	ChannelID     int64
	CorrelationID string
	CreatedAt     time.Time
}

// AuthSessionStatus tracks a transient OTP login flow.
type AuthSessionStatus string

const (
	AuthStatusPending        AuthSessionStatus = "pending"
	AuthStatusCodeSent       AuthSessionStatus = "code_sent"
	AuthStatusPasswordNeeded AuthSessionStatus = "password_needed"
	AuthStatusCompleted      AuthSessionStatus = "completed"
	AuthStatusExpired        AuthSessionStatus = "expired"
)

// AuthSessionState is transient login-flow state; expired rows must not be
// returned by any repository read.
type AuthSessionState struct {
	SessionID         string
	PhoneNumber       string
	Status            AuthSessionStatus
	ExpiresAt         time.Time
	UpstreamSessionCT []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AccountPause is the 1:1 pause record for an Account; explicit resume is
// required to clear it.
type AccountPause struct {
	AccountID   int64
	PausedAt    *time.Time
	PauseReason string
}

// KeyRotationState is the singleton row tracking progress of one in-flight
// KEK rotation, crash-resumable from LastRotatedAccountID+1.
type KeyRotationState struct {
	TargetKeyVersion     int
	LastRotatedAccountID int64
	StartedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
}
