// Command tca runs the Telegram channel aggregator core: the scheduler,
// the ingest/dedupe pipeline, and the ops jobs (backup, prune), wired
// together by internal/app.State.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cuemby/tca/internal/app"
	"github.com/cuemby/tca/internal/auth"
	"github.com/cuemby/tca/internal/config"
	"github.com/cuemby/tca/internal/health"
	"github.com/cuemby/tca/internal/log"
	"github.com/cuemby/tca/internal/metrics"
	"github.com/cuemby/tca/internal/security"
	"github.com/cuemby/tca/internal/storage"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tca",
	Short:   "tca aggregates Telegram channel messages into a deduplicated, merged thread",
	Version: Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupNowCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(rotateKeyCmd)
}

// loadConfigAndLogger applies go.uber.org/automaxprocs before anything
// else starts (SPEC_FULL.md §6), then loads and validates Config, then
// initializes the global logger from it — the first three steps of
// spec.md §4.4, before migrations ever run.
func loadConfigAndLogger() (*config.Config, zerolog.Logger, error) {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		// A failure here (e.g. no cgroup quota visible) is not fatal: the
		// runtime simply keeps GOMAXPROCS at its default.
		fmt.Fprintf(os.Stderr, "automaxprocs: %v\n", err)
	}

	cfg, err := config.Load(nil)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: true})
	logger := log.WithComponent("main")
	logger.Info().Str("config", cfg.String()).Msg("configuration loaded")
	return cfg, logger, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, ingest pipeline, and ops jobs until signaled to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfigAndLogger()
		if err != nil {
			return err
		}

		state, err := app.New(cfg, logger, nil, nil)
		if err != nil {
			return fmt.Errorf("build app state: %w", err)
		}

		if state.Auth.Status() != auth.StatusUnlocked {
			logger.Warn().Msg("starting locked: interactive mode requires `tca unlock` before any account operation")
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", healthzHandler(state))
		mux.HandleFunc("/unlock", unlockHandler(state, logger))
		httpServer := &http.Server{Addr: cfg.Bind, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		state.Start()
		logger.Info().Str("bind", cfg.Bind).Msg("tca is running, press Ctrl+C to stop")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutdown signal received")
		case err := <-errCh:
			logger.Error().Err(err).Msg("metrics/health server failed")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_ = httpServer.Shutdown(shutdownCtx)
		if err := state.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info().Msg("shutdown complete")
		return nil
	},
}

// healthzHandler reports 200 when every checker other than the upstream one
// is currently healthy, 503 otherwise, with a one-line JSON body per check
// — the minimal surface a container orchestrator's liveness/readiness
// probe needs. The upstream check is reported in the body but does not
// affect the status code.
func healthzHandler(state *app.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		allHealthy := true
		var entries []string
		for _, checker := range state.HealthCheckers(nil) {
			res := checker.Check(ctx)
			allHealthy = allHealthy && (res.Healthy || checker.Type() == health.CheckTypeUpstream)
			entries = append(entries, fmt.Sprintf("%q:{\"healthy\":%t,\"message\":%q}", checker.Type(), res.Healthy, res.Message))
		}

		w.Header().Set("Content-Type", "application/json")
		if !allHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprint(w, "{"+strings.Join(entries, ",")+"}")
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and report the resulting version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfigAndLogger()
		if err != nil {
			return err
		}

		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		if err := storage.Migrate(db); err != nil {
			return err
		}

		version, dirty, err := storage.MigrationVersion(db)
		if err != nil {
			return fmt.Errorf("read migration version: %w", err)
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
		return nil
	},
}

var backupNowCmd = &cobra.Command{
	Use:   "backup-now",
	Short: "Run one backup cycle immediately and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfigAndLogger()
		if err != nil {
			return err
		}

		state, err := app.New(cfg, logger, nil, nil)
		if err != nil {
			return fmt.Errorf("build app state: %w", err)
		}
		defer state.Shutdown(context.Background())

		path, err := state.Backup.Run(context.Background())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		logger.Info().Str("path", path).Msg("backup complete")
		return nil
	},
}

// unlockHandler lets an operator unlock an already-running interactive-mode
// process without restarting it: POST {"passphrase":"..."} to /unlock.
// auto-unlock mode processes are already Unlocked by the time this handler
// could ever run; any request against an already-unlocked process is a
// no-op success that leaves the held KEK in place.
func unlockHandler(state *app.State, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if state.Auth.Status() == auth.StatusUnlocked {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		var body struct {
			Passphrase string `json:"passphrase"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := auth.UnlockInteractive(state.Auth, body.Passphrase); err != nil {
			logger.Warn().Err(err).Msg("unlock attempt rejected")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

var unlockAddr string

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock an already-running tca serve process over its bind address",
	Long: `Prompts for the unlock passphrase on stdin and POSTs it to a running
'tca serve' process's /unlock endpoint. Only meaningful in interactive
mode: auto-unlock mode processes are already unlocked at boot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase("Unlock passphrase: ")
		if err != nil {
			return err
		}

		body, err := json.Marshal(struct {
			Passphrase string `json:"passphrase"`
		}{Passphrase: passphrase})
		if err != nil {
			return err
		}

		resp, err := http.Post(unlockAddr+"/unlock", "application/json", strings.NewReader(string(body)))
		if err != nil {
			return fmt.Errorf("contact %s: %w", unlockAddr, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("unlock rejected: server returned %s", resp.Status)
		}
		fmt.Println("unlocked")
		return nil
	},
}

func init() {
	unlockCmd.Flags().StringVar(&unlockAddr, "addr", "http://127.0.0.1:8686", "base URL of the running tca serve process")
}

var rotateKeyTargetVersion int

// rotateKeyCmd runs a key rotation offline, against the store directly
// rather than a live serve process: rotation re-wraps every account's DEK
// under a freshly-derived KEK one account at a time, so it is safe to run
// against a store a `tca serve` process is not currently holding open, but
// must not run concurrently with one that is.
var rotateKeyCmd = &cobra.Command{
	Use:   "rotate-key",
	Short: "Re-wrap every account's data-encryption key under a new key-encryption key",
	Long: `Prompts for the current and new unlock passphrases, then walks every
account re-wrapping its DEKs from the old KEK to the new one. Resumable:
if interrupted, re-running rotate-key with the same passphrases picks up
from the last account it successfully rotated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfigAndLogger()
		if err != nil {
			return err
		}

		oldPassphrase, err := promptPassphrase("Current unlock passphrase: ")
		if err != nil {
			return err
		}
		newPassphrase, err := promptPassphrase("New unlock passphrase: ")
		if err != nil {
			return err
		}

		oldKEK, err := security.NewKEK(security.DeriveKeyFromPassphrase(oldPassphrase), 1)
		if err != nil {
			return fmt.Errorf("derive current key: %w", err)
		}
		newKEK, err := security.NewKEK(security.DeriveKeyFromPassphrase(newPassphrase), rotateKeyTargetVersion)
		if err != nil {
			return fmt.Errorf("derive new key: %w", err)
		}

		state, err := app.New(cfg, logger, nil, nil)
		if err != nil {
			return fmt.Errorf("build app state: %w", err)
		}
		defer state.Shutdown(context.Background())

		result, err := state.Rotator.Run(context.Background(), oldKEK, newKEK, rotateKeyTargetVersion)
		if err != nil {
			return fmt.Errorf("rotation failed after rotating %d account(s): %w", result.AccountsRotated, err)
		}
		logger.Info().Int("accounts_rotated", result.AccountsRotated).Bool("completed", result.Completed).Msg("key rotation finished")
		return nil
	},
}

func init() {
	rotateKeyCmd.Flags().IntVar(&rotateKeyTargetVersion, "target-version", 2, "key version every account should end rotation at")
}

func promptPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return strings.TrimSpace(line), nil
}
