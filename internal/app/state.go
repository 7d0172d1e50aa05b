package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/tca/internal/auth"
	"github.com/cuemby/tca/internal/config"
	"github.com/cuemby/tca/internal/dedupe"
	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/events"
	"github.com/cuemby/tca/internal/health"
	"github.com/cuemby/tca/internal/ingest"
	"github.com/cuemby/tca/internal/log"
	"github.com/cuemby/tca/internal/metrics"
	"github.com/cuemby/tca/internal/ops"
	"github.com/cuemby/tca/internal/scheduler"
	"github.com/cuemby/tca/internal/settings"
	"github.com/cuemby/tca/internal/storage"
)

// writerQueueCapacity bounds the writer queue's pending-closure buffer;
// sized for a handful of poll jobs' worth of writes in flight at once.
const writerQueueCapacity = 256

// State is the single long-lived object cmd/tca/main.go constructs: every
// repository, resolver, and background loop the process runs, composed the
// way _examples/cuemby-warren/pkg/manager.Manager composes its own
// storage/security/events/dns collaborators. Nothing in this module reaches
// for a package-level global instead of a field on State.
type State struct {
	Config *config.Config
	Logger zerolog.Logger

	DB    *storage.DB
	Queue *storage.WriterQueue

	Accounts      *storage.AccountRepo
	AccountPauses *storage.AccountPauseRepo
	Groups        *storage.GroupRepo
	Channels      *storage.ChannelRepo
	ChannelStates *storage.ChannelStateRepo
	RawMessages   *storage.RawMessageRepo
	Items         *storage.ItemRepo
	Clusters      *storage.ClusterRepo
	Members       *storage.MemberRepo
	Decisions     *storage.DecisionRepo
	IngestErrors  *storage.IngestErrorRepo
	Notifications *storage.NotificationRepo
	Settings      *storage.SettingRepo
	KeyRotation   *storage.KeyRotationRepo
	AuthSessions  *storage.AuthSessionRepo
	PollJobs      *storage.PollJobRepo

	Resolver *settings.Resolver
	Auth     *auth.State
	Broker   *events.Broker
	nats     *events.NATSMirror

	Snapshot *storage.Snapshot
	metrics  *metrics.Collector

	Engine   *dedupe.Engine
	Pipeline *ingest.Pipeline

	Scheduler *scheduler.Scheduler
	Pruner    *ops.Pruner
	Backup    *ops.Backup
	Rotator   *auth.Rotator
	shutdown  *ops.Shutdown
}

// New builds a State against cfg: opens the store, applies migrations,
// seeds settings defaults, resolves the startup unlock mode, issues the
// first-boot bootstrap token, and wires every other collaborator — the
// exact order spec.md §4.4 names (migrations, settings seed, auth unlock,
// bootstrap token, telegram manager). fetcher is the external upstream
// client (spec.md §6's "minimal upstream client contract"); it may be nil,
// in which case the ingest pipeline and upstream health check simply have
// nothing to poll yet.
func New(cfg *config.Config, logger zerolog.Logger, fetcher ingest.Fetcher, now func() time.Time) (*State, error) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, errs.Fatal(err, "open store")
	}

	if err := storage.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	queue := storage.NewWriterQueue(db, writerQueueCapacity)
	queue.Start()

	s := &State{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Queue:  queue,

		Accounts:      storage.NewAccountRepo(db, queue),
		AccountPauses: storage.NewAccountPauseRepo(db, queue),
		Groups:        storage.NewGroupRepo(db, queue),
		Channels:      storage.NewChannelRepo(db, queue),
		ChannelStates: storage.NewChannelStateRepo(db, queue),
		RawMessages:   storage.NewRawMessageRepo(db, queue),
		Items:         storage.NewItemRepo(db, queue),
		Clusters:      storage.NewClusterRepo(db, queue),
		Members:       storage.NewMemberRepo(db),
		Decisions:     storage.NewDecisionRepo(db),
		IngestErrors:  storage.NewIngestErrorRepo(db, queue),
		Notifications: storage.NewNotificationRepo(db, queue),
		Settings:      storage.NewSettingRepo(db, queue),
		KeyRotation:   storage.NewKeyRotationRepo(db, queue),
		AuthSessions:  storage.NewAuthSessionRepo(db, queue),
		PollJobs:      storage.NewPollJobRepo(db, queue),
	}

	s.Resolver = settings.NewResolver(s.Settings, s.Groups)
	ctx := context.Background()
	if err := s.Resolver.SeedDefaults(ctx); err != nil {
		queue.Stop()
		db.Close()
		return nil, err
	}

	s.Auth = auth.NewState()
	if err := auth.Startup(s.Auth, cfg); err != nil {
		queue.Stop()
		db.Close()
		return nil, err
	}

	if err := auth.EnsureBootstrapToken(ctx, s.Settings, cfg.BootstrapTokenFile, now()); err != nil {
		queue.Stop()
		db.Close()
		return nil, err
	}

	s.Broker = events.NewBroker()
	if cfg.NATSURL != "" {
		mirror, err := events.NewNATSMirror(events.DefaultNATSMirrorConfig(cfg.NATSURL), s.Broker, log.WithComponent("nats_mirror"))
		if err != nil {
			// Per spec.md §6 the NATS mirror is best-effort: its absence
			// must never block startup.
			s.Logger.Warn().Err(err).Msg("NATS mirror unavailable, continuing without it")
		} else {
			s.nats = mirror
		}
	}

	if err := s.wireDedupeAndIngest(ctx, fetcher, now); err != nil {
		queue.Stop()
		db.Close()
		return nil, err
	}

	s.wireScheduler()
	s.wireOps(now)

	s.Snapshot = &storage.Snapshot{
		Accounts:      s.Accounts,
		Channels:      s.Channels,
		Clusters:      s.Clusters,
		Items:         s.Items,
		Notifications: s.Notifications,
	}
	s.metrics = metrics.NewCollector(s.Snapshot)

	return s, nil
}

// wireDedupeAndIngest resolves the dedupe chain's boot-time parameters
// (the title-similarity threshold and rare-token frequency cap are read
// once here rather than per item, matching the teacher's pattern of
// resolving tunables at construction instead of threading a resolver
// through the hot path) and builds the Engine and Pipeline.
func (s *State) wireDedupeAndIngest(ctx context.Context, fetcher ingest.Fetcher, now func() time.Time) error {
	threshold, err := s.Resolver.TitleSimilarityThreshold(ctx)
	if err != nil {
		return fmt.Errorf("resolve title similarity threshold: %w", err)
	}
	rareTokenMaxFrequency, err := s.Resolver.RareTokenMaxFrequency(ctx)
	if err != nil {
		return fmt.Errorf("resolve rare token max frequency: %w", err)
	}

	s.Engine = dedupe.NewEngine(s.Items, s.Clusters, s.Members, s.Decisions, dedupe.DefaultChain(threshold), rareTokenMaxFrequency)
	s.Engine.Now = now

	s.Pipeline = &ingest.Pipeline{
		Fetcher:       fetcher,
		Channels:      s.Channels,
		ChannelStates: s.ChannelStates,
		RawMessages:   s.RawMessages,
		Items:         s.Items,
		IngestErrors:  s.IngestErrors,
		Notifications: s.Notifications,
		AccountPauses: s.AccountPauses,
		Queue:         s.Queue,
		Engine:        s.Engine,
		Resolver:      s.Resolver,
		Logger:        log.WithComponent("ingest"),
		Now:           now,
	}
	return nil
}

func (s *State) wireScheduler() {
	store := &channelStore{channels: s.Channels, states: s.ChannelStates}
	s.Scheduler = scheduler.New(store, s.PollJobs, s.Resolver, log.WithComponent("scheduler"), scheduler.Config{})
}

func (s *State) wireOps(now func() time.Time) {
	s.Pruner = &ops.Pruner{
		RawMessages:  s.RawMessages,
		Items:        s.Items,
		Clusters:     s.Clusters,
		Members:      s.Members,
		Decisions:    s.Decisions,
		IngestErrors: s.IngestErrors,
		Queue:        s.Queue,
		Resolver:     s.Resolver,
		Logger:       log.WithComponent("prune"),
		Now:          now,
	}

	s.Backup = &ops.Backup{
		DB:            s.DB,
		Notifications: s.Notifications,
		Resolver:      s.Resolver,
		BackupDir:     s.Config.BackupDir,
		Logger:        log.WithComponent("backup"),
		Now:           now,
	}

	s.shutdown = &ops.Shutdown{
		Scheduler: s.Scheduler,
		Queue:     s.Queue,
		Auth:      s.Auth,
		DB:        s.DB,
		Logger:    log.WithComponent("shutdown"),
	}

	s.Rotator = &auth.Rotator{
		Accounts:    s.Accounts,
		KeyRotation: s.KeyRotation,
		Logger:      log.WithComponent("rotation"),
		Now:         now,
	}
}

// Start launches every background loop: the event broker, its optional
// NATS mirror, the scheduler tick loop, and the metrics collector. Call
// once, after New returns successfully.
func (s *State) Start() {
	s.Broker.Start()
	if s.nats != nil {
		s.nats.Start()
	}
	s.Scheduler.Start()
	s.metrics.Start()
}

// Shutdown runs the ordered teardown spec.md §4.6 names via ops.Shutdown,
// then stops the collaborators ops.Shutdown doesn't own (the metrics
// collector and the event broker/NATS mirror, neither of which touch the
// store).
func (s *State) Shutdown(ctx context.Context) error {
	s.metrics.Stop()
	if s.nats != nil {
		s.nats.Stop()
	}
	err := s.shutdown.Run(ctx)
	s.Broker.Stop()
	return err
}

// HealthCheckers returns the store, writer-queue, and upstream checkers
// that cmd/tca's /healthz handler runs on each request. When isConnected
// is nil, the upstream checker always reports disconnected.
func (s *State) HealthCheckers(isConnected func() bool) []health.Checker {
	if isConnected == nil {
		isConnected = func() bool { return false }
	}
	return []health.Checker{
		&health.StoreChecker{DB: s.DB.ReadPool},
		&health.WriterQueueChecker{Submit: s.submitNoop},
		&health.UpstreamChecker{IsConnected: isConnected},
	}
}

// submitNoop adapts WriterQueue.Submit's func(*sql.Tx) error closure shape
// to health.WriterQueueChecker's plain func() error, so the checker can
// prove the single-consumer loop is still draining without importing
// database/sql itself.
func (s *State) submitNoop(ctx context.Context, op func() error) error {
	return s.Queue.Submit(ctx, func(*sql.Tx) error { return op() })
}
