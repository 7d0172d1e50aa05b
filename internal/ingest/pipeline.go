package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/tca/internal/dedupe"
	"github.com/cuemby/tca/internal/settings"
	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// Pipeline runs one poll job through spec.md §4.5's fetch → persist-raw →
// normalize → dedupe → advance-cursor steps. Collaborators are narrow
// storage repos rather than a god object, the same composition style the
// teacher uses for its worker-pool stage functions.
type Pipeline struct {
	Fetcher Fetcher

	Channels      *storage.ChannelRepo
	ChannelStates *storage.ChannelStateRepo
	RawMessages   *storage.RawMessageRepo
	Items         *storage.ItemRepo
	IngestErrors  *storage.IngestErrorRepo
	Notifications *storage.NotificationRepo
	AccountPauses *storage.AccountPauseRepo
	Queue         *storage.WriterQueue

	Engine   *dedupe.Engine
	Resolver *settings.Resolver
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Run executes one poll job end to end. Every stage that can fail on a
// recoverable condition is wrapped in WithErrorCapture so one bad message
// never aborts the whole job; only a failure to even reach the write path
// (e.g. a writer-queue closure erroring for reasons other than the stage
// itself) is returned to the caller.
func (p *Pipeline) Run(ctx context.Context, job types.PollJob) error {
	now := p.now()

	channel, err := p.Channels.Get(ctx, job.ChannelID)
	if err != nil {
		return fmt.Errorf("load channel %d: %w", job.ChannelID, err)
	}

	state, err := p.ChannelStates.GetState(ctx, job.ChannelID)
	if err != nil {
		return fmt.Errorf("load channel state %d: %w", job.ChannelID, err)
	}

	maxPages, err := p.Resolver.MaxPagesPerPoll(ctx)
	if err != nil {
		return fmt.Errorf("resolve max pages per poll: %w", err)
	}
	maxMessages, err := p.Resolver.MaxMessagesPerPoll(ctx)
	if err != nil {
		return fmt.Errorf("resolve max messages per poll: %w", err)
	}

	messages, nextCursor, err := p.Fetcher.FetchSince(ctx, *channel, state.Cursor, maxPages, maxMessages)
	if err != nil {
		if seconds, ok := AsFloodWait(err); ok {
			return HandleFloodWait(ctx, p.ChannelStates, p.Notifications, p.AccountPauses, p.Queue,
				job.ChannelID, seconds, &channel.AccountID, now, func(riskErr error) {
					p.Logger.Error().Err(riskErr).Int64("account_id", channel.AccountID).Msg("record account risk breach failed")
				})
		}
		captureErr := WithErrorCapture(ctx, p.IngestErrors, &job.ChannelID, types.StageFetch, "fetch_failed", job.CorrelationID, p.now,
			func() error { return err })
		if errors.Is(captureErr, ErrStageCaptured) {
			return nil
		}
		return captureErr
	}

	for _, msg := range messages {
		if procErr := p.processMessage(ctx, *channel, msg); procErr != nil {
			if errors.Is(procErr, ErrStageCaptured) {
				continue
			}
			return procErr
		}
	}

	if err := p.ChannelStates.AdvanceCursor(ctx, job.ChannelID, nextCursor, p.now()); err != nil {
		return fmt.Errorf("advance cursor for channel %d: %w", job.ChannelID, err)
	}
	return nil
}

// processMessage persists one fetched message's raw payload, upserts its
// normalized Item, and runs it through the dedupe engine. Each sub-stage
// is independently wrapped in WithErrorCapture: a malformed message must
// not block the rest of the batch.
func (p *Pipeline) processMessage(ctx context.Context, channel types.Channel, msg FetchedMessage) error {
	var rawID int64
	err := WithErrorCapture(ctx, p.IngestErrors, &channel.ID, types.StageNormalize, "raw_persist_failed", "", p.now, func() error {
		id, createErr := p.RawMessages.Create(ctx, &types.RawMessage{
			ChannelID: channel.ID, UpstreamMessageID: msg.UpstreamMessageID,
			PayloadJSON: msg.Payload, CreatedAt: p.now(),
		})
		rawID = id
		return createErr
	})
	if err != nil {
		return err
	}

	canonicalURL := dedupe.NormalizeURL(msg.CanonicalURL)
	item := &types.Item{
		ChannelID: channel.ID, UpstreamMessageID: msg.UpstreamMessageID, RawMessageID: &rawID,
		PublishedAt: msg.PublishedAt, Title: msg.Title, Body: msg.Body, CanonicalURL: canonicalURL,
		CanonicalURLHash: dedupe.HashURL(canonicalURL), ContentHash: dedupe.HashContent(msg.Title, msg.Body),
		DedupeState: types.DedupeStatePending, CreatedAt: p.now(),
	}

	var itemID int64
	err = WithErrorCapture(ctx, p.IngestErrors, &channel.ID, types.StageNormalize, "item_upsert_failed", "", p.now, func() error {
		id, _, createErr := p.Items.CreateOrGet(ctx, item)
		itemID = id
		return createErr
	})
	if err != nil {
		return err
	}
	item.ID = itemID

	horizonMinutes, err := p.Resolver.ResolveDedupeHorizonMinutes(ctx, channel.GroupID)
	if err != nil {
		return fmt.Errorf("resolve dedupe horizon: %w", err)
	}

	return WithErrorCapture(ctx, p.IngestErrors, &channel.ID, types.StageDedupe, "dedupe_failed", "", p.now, func() error {
		return p.Engine.ProcessItem(ctx, *item, horizonMinutes)
	})
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}
