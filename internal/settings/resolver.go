// Package settings resolves the dynamic, JSON-valued configuration rows
// described in spec.md §9: a tagged union of JSON primitives with typed
// accessors, seeded from an embedded defaults.yaml, backfilled on boot,
// and re-read fresh on every lookup rather than cached (spec.md §5's
// "settings cache is not shared" resource policy).
package settings

import (
	"context"
	"database/sql"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/storage"
)

// Resolver is the typed read surface over the settings table, plus the
// boot-time seed-and-backfill routine.
type Resolver struct {
	settings *storage.SettingRepo
	groups   *storage.GroupRepo
	now      func() time.Time
}

func NewResolver(settings *storage.SettingRepo, groups *storage.GroupRepo) *Resolver {
	return &Resolver{settings: settings, groups: groups, now: time.Now}
}

// SeedDefaults inserts every key from defaults.yaml that is not already
// present, in one writer-queue transaction. Idempotent: running it again
// against an already-seeded database changes nothing.
func (r *Resolver) SeedDefaults(ctx context.Context) error {
	table, err := defaultTable()
	if err != nil {
		return err
	}

	now := r.now().UTC()
	return r.settings.Submit(ctx, func(tx *sql.Tx) error {
		for key, raw := range table {
			value, err := Encode(raw)
			if err != nil {
				return errs.Fatal(err, "encode default for %q", key)
			}
			if err := r.settings.SeedIfMissingTx(tx, key, value, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get reads key fresh from the store and decodes it into a Value.
func (r *Resolver) Get(ctx context.Context, key string) (Value, error) {
	row, err := r.settings.Get(ctx, key)
	if err != nil {
		return Value{}, err
	}
	return Decode(row.Value)
}

// GetInt reads key as an integer, failing closed if it does not exist or
// is not an integer — required keys must have been seeded at boot.
func (r *Resolver) GetInt(ctx context.Context, key string) (int, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return v.Int(key)
}

func (r *Resolver) GetFloat(ctx context.Context, key string) (float64, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return v.Float(key)
}

// intOrDefault reads key and falls back to its seeded default when the row
// is missing or fails to decode as an integer, per spec.md §4.6's "invalid
// or non-numeric values fall back to seeded defaults" rule.
func (r *Resolver) intOrDefault(ctx context.Context, key string) (int, error) {
	n, err := r.GetInt(ctx, key)
	if err == nil {
		return n, nil
	}
	if !errs.Is(err, errs.KindNotFound) && !errs.Is(err, errs.KindValidation) {
		return 0, err
	}
	table, terr := defaultTable()
	if terr != nil {
		return 0, terr
	}
	raw, ok := table[key]
	if !ok {
		return 0, errs.Fatal(nil, "%q missing from embedded defaults", key)
	}
	v, ok := raw.(int)
	if !ok {
		return 0, errs.Fatal(nil, "%q default is not an integer", key)
	}
	return v, nil
}

func (r *Resolver) floatOrDefault(ctx context.Context, key string) (float64, error) {
	f, err := r.GetFloat(ctx, key)
	if err == nil {
		return f, nil
	}
	if !errs.Is(err, errs.KindNotFound) && !errs.Is(err, errs.KindValidation) {
		return 0, err
	}
	table, terr := defaultTable()
	if terr != nil {
		return 0, terr
	}
	raw, ok := table[key]
	if !ok {
		return 0, errs.Fatal(nil, "%q missing from embedded defaults", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, errs.Fatal(nil, "%q default is not a number", key)
	}
}

// PollIntervalSeconds satisfies internal/scheduler.SettingsResolver.
func (r *Resolver) PollIntervalSeconds(ctx context.Context) (int, error) {
	return r.intOrDefault(ctx, "scheduler.default_poll_interval_seconds")
}

// MaxPagesPerPoll bounds how many upstream pages one poll job may fetch.
func (r *Resolver) MaxPagesPerPoll(ctx context.Context) (int, error) {
	return r.intOrDefault(ctx, "scheduler.max_pages_per_poll")
}

// MaxMessagesPerPoll bounds how many upstream messages one poll job may fetch.
func (r *Resolver) MaxMessagesPerPoll(ctx context.Context) (int, error) {
	return r.intOrDefault(ctx, "scheduler.max_messages_per_poll")
}

// RareTokenMaxFrequency is the document-frequency ceiling (within the
// dedupe horizon's candidate pool) a title token must not exceed to count
// as a blocking key, per SPEC_FULL.md §4.5's resolved Open Question.
func (r *Resolver) RareTokenMaxFrequency(ctx context.Context) (int, error) {
	return r.intOrDefault(ctx, "dedupe.rare_token_max_frequency")
}

// TitleSimilarityThreshold is the token-set similarity cutoff the
// title_similarity dedupe strategy compares against.
func (r *Resolver) TitleSimilarityThreshold(ctx context.Context) (float64, error) {
	return r.floatOrDefault(ctx, "dedupe.title_similarity_threshold")
}

// RetentionRawMessagesDays must be > 0; invalid values fall back to the
// seeded default rather than disabling the prune step.
func (r *Resolver) RetentionRawMessagesDays(ctx context.Context) (int, error) {
	n, err := r.intOrDefault(ctx, "retention.raw_messages_days")
	if err == nil && n <= 0 {
		return r.seededDefaultInt(ctx, "retention.raw_messages_days")
	}
	return n, err
}

// RetentionItemsDays may be 0, meaning "retain forever" (bypass the step).
func (r *Resolver) RetentionItemsDays(ctx context.Context) (int, error) {
	n, err := r.intOrDefault(ctx, "retention.items_days")
	if err == nil && n < 0 {
		return r.seededDefaultInt(ctx, "retention.items_days")
	}
	return n, err
}

// RetentionIngestErrorsDays must be > 0; invalid values fall back to the
// seeded default.
func (r *Resolver) RetentionIngestErrorsDays(ctx context.Context) (int, error) {
	n, err := r.intOrDefault(ctx, "retention.ingest_errors_days")
	if err == nil && n <= 0 {
		return r.seededDefaultInt(ctx, "retention.ingest_errors_days")
	}
	return n, err
}

// BackupRetainCount must be > 0; invalid values fall back to the seeded
// default.
func (r *Resolver) BackupRetainCount(ctx context.Context) (int, error) {
	n, err := r.intOrDefault(ctx, "backup.retain_count")
	if err == nil && n <= 0 {
		return r.seededDefaultInt(ctx, "backup.retain_count")
	}
	return n, err
}

func (r *Resolver) seededDefaultInt(_ context.Context, key string) (int, error) {
	table, err := defaultTable()
	if err != nil {
		return 0, err
	}
	raw, ok := table[key]
	if !ok {
		return 0, errs.Fatal(nil, "%q missing from embedded defaults", key)
	}
	v, ok := raw.(int)
	if !ok {
		return 0, errs.Fatal(nil, "%q default is not an integer", key)
	}
	return v, nil
}

// ResolveDedupeHorizonMinutes applies the precedence order spec.md §9
// assigns to the dedupe horizon: a per-group override wins if set,
// otherwise the global `dedupe.default_horizon_minutes` setting,
// otherwise the seeded default from defaults.yaml (which SeedDefaults
// should already have backfilled, so this last fallback is a belt-and-
// braces path for a store that was never seeded).
func (r *Resolver) ResolveDedupeHorizonMinutes(ctx context.Context, groupID *int64) (int, error) {
	if groupID != nil {
		g, err := r.groups.Get(ctx, *groupID)
		if err != nil && !errs.Is(err, errs.KindNotFound) {
			return 0, err
		}
		if g != nil && g.DedupeHorizonMinutesOverride != nil {
			return *g.DedupeHorizonMinutesOverride, nil
		}
	}

	n, err := r.GetInt(ctx, "dedupe.default_horizon_minutes")
	if err == nil {
		return n, nil
	}
	if !errs.Is(err, errs.KindNotFound) {
		return 0, err
	}

	table, terr := defaultTable()
	if terr != nil {
		return 0, terr
	}
	raw, ok := table["dedupe.default_horizon_minutes"]
	if !ok {
		return 0, errs.Fatal(nil, "dedupe.default_horizon_minutes missing from embedded defaults")
	}
	f, ok := raw.(int)
	if !ok {
		return 0, errs.Fatal(nil, "dedupe.default_horizon_minutes default is not an integer")
	}
	return f, nil
}
