package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// SignificantFloodWaitSeconds is the threshold at or above which a flood-wait
// cool-down is also surfaced to operators, per
// original_source/tca/ingest/flood_wait.py.
const SignificantFloodWaitSeconds = 300

const FloodWaitNotificationType = "ingest.flood_wait"

// HandleFloodWait pauses channelID until now+waitSeconds and, when
// waitSeconds is significant, raises a medium-severity notification.
// When accountID is non-nil it also records an account-risk breach
// (spec.md §7's "flood-wait contributes to account-risk escalation"),
// logging rather than failing the whole call if that secondary bookkeeping
// errors — a flood-wait pause must never be lost because risk tracking
// failed.
func HandleFloodWait(
	ctx context.Context,
	states *storage.ChannelStateRepo,
	notifications *storage.NotificationRepo,
	pauses *storage.AccountPauseRepo,
	queue *storage.WriterQueue,
	channelID int64,
	waitSeconds int,
	accountID *int64,
	now time.Time,
	onRiskError func(error),
) error {
	if waitSeconds <= 0 {
		return errs.Validation("flood wait error missing wait seconds")
	}
	resumeAt := now.Add(time.Duration(waitSeconds) * time.Second)

	if err := states.SetPausedUntil(ctx, channelID, resumeAt, now); err != nil {
		return err
	}

	if waitSeconds >= SignificantFloodWaitSeconds {
		payload, err := json.Marshal(map[string]any{
			"channel_id":   channelID,
			"wait_seconds": waitSeconds,
			"resume_at":    resumeAt,
		})
		if err != nil {
			return errs.Fatal(err, "encode flood wait notification payload")
		}
		if _, err := notifications.Create(ctx, &types.Notification{
			Type:      FloodWaitNotificationType,
			Severity:  types.SeverityMedium,
			Message:   "flood wait enforced; channel paused",
			Payload:   payload,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}

	if accountID != nil {
		if err := RecordAccountRiskBreach(ctx, pauses, notifications, queue, *accountID, now); err != nil && onRiskError != nil {
			onRiskError(err)
		}
	}
	return nil
}
