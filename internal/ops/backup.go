package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/metrics"
	"github.com/cuemby/tca/internal/settings"
	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// backupStepPages is how many source pages copyOnline copies per Step
// call; -1 would copy the whole database in one call, but stepping lets a
// cancelled context interrupt the copy between pages instead of only
// before or after it.
const backupStepPages = 100

// minFreeSpaceMultiple is the safety margin backup.go requires on the
// destination filesystem before starting a copy: the live database file
// size times this multiple, covering the temporary copy plus the file it
// will eventually replace.
const minFreeSpaceMultiple = 2

const backupNotificationType = "ops.backup_failed"

// BackupError is the typed failure spec.md §4.6 requires backup.go to
// raise on any failure (insufficient space, copy failure, failed
// integrity check, rename failure). ErrorType is the machine-readable
// reason also recorded in the accompanying notification's payload.
type BackupError struct {
	ErrorType string
	Cause     error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup failed (%s): %v", e.ErrorType, e.Cause)
}

func (e *BackupError) Unwrap() error { return e.Cause }

// Backup runs the nightly backup job described in spec.md §4.6.
type Backup struct {
	DB            *storage.DB
	Notifications *storage.NotificationRepo
	Resolver      *settings.Resolver
	BackupDir     string
	Logger        zerolog.Logger
	Now           func() time.Time
}

func (b *Backup) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

// Run performs one backup: free-space check, online copy, integrity
// check, atomic rename, retain-count enforcement. It is idempotent for
// the same calendar date (re-running overwrites the day's file safely).
// Context cancellation propagates unchanged, never remapped to a
// *BackupError (spec.md §4.6).
func (b *Backup) Run(ctx context.Context) (string, error) {
	timer := metrics.NewTimer()

	now := b.now()
	finalName := fmt.Sprintf("tca-%s.db", now.Format("20060102"))
	finalPath := filepath.Join(b.BackupDir, finalName)
	tmpPath := finalPath + ".tmp"

	path, err := b.run(ctx, finalPath, tmpPath, now)
	if err != nil {
		_ = os.Remove(tmpPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		metrics.BackupsTotal.WithLabelValues("failure").Inc()
		timer.ObserveDuration(metrics.BackupDuration)
		return "", err
	}

	metrics.BackupsTotal.WithLabelValues("success").Inc()
	timer.ObserveDuration(metrics.BackupDuration)
	b.Logger.Info().Str("backup_path", path).Msg("nightly backup completed")
	return path, nil
}

func (b *Backup) run(ctx context.Context, finalPath, tmpPath string, now time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(b.BackupDir, 0o755); err != nil {
		return "", b.fail(ctx, "destination_unavailable", err, finalPath, now)
	}

	if err := b.checkFreeSpace(); err != nil {
		return "", b.fail(ctx, "insufficient_space", err, finalPath, now)
	}

	if err := b.copyOnline(ctx, tmpPath); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", b.fail(ctx, "copy_failed", err, finalPath, now)
	}

	if err := checkIntegrity(tmpPath); err != nil {
		return "", b.fail(ctx, "integrity_failed", err, finalPath, now)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", b.fail(ctx, "rename_failed", err, finalPath, now)
	}

	retainCount, err := b.Resolver.BackupRetainCount(ctx)
	if err != nil {
		return "", b.fail(ctx, "retain_count_unresolved", err, finalPath, now)
	}
	if err := enforceRetainCount(b.BackupDir, retainCount); err != nil {
		b.Logger.Warn().Err(err).Msg("backup retain-count cleanup failed, latest backup still kept")
	}

	return finalPath, nil
}

// checkFreeSpace compares the backup directory's free space against the
// live database file size (SPEC_FULL.md §4.6, via
// github.com/shirou/gopsutil/v3/disk).
func (b *Backup) checkFreeSpace() error {
	srcInfo, err := os.Stat(b.DB.Path())
	if err != nil {
		return fmt.Errorf("stat source database: %w", err)
	}

	usage, err := disk.Usage(b.BackupDir)
	if err != nil {
		return fmt.Errorf("read backup directory disk usage: %w", err)
	}

	required := uint64(srcInfo.Size()) * minFreeSpaceMultiple
	if usage.Free < required {
		return fmt.Errorf("only %d bytes free, need at least %d", usage.Free, required)
	}
	return nil
}

// copyOnline performs the live copy via mattn/go-sqlite3's online-backup
// API (SQLiteConn.Backup), stepping backupStepPages pages at a time so
// ctx cancellation can interrupt the copy between steps.
func (b *Backup) copyOnline(ctx context.Context, destPath string) error {
	destDB, err := sql.Open("sqlite3", destPath)
	if err != nil {
		return fmt.Errorf("open backup destination: %w", err)
	}
	defer destDB.Close()

	destConn, err := destDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire backup destination connection: %w", err)
	}
	defer destConn.Close()

	srcConn, err := b.DB.ReadPool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire source connection: %w", err)
	}
	defer srcConn.Close()

	return destConn.Raw(func(destDriverConn any) error {
		destSQLiteConn, ok := destDriverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("backup destination connection is not a sqlite3 connection")
		}

		return srcConn.Raw(func(srcDriverConn any) error {
			srcSQLiteConn, ok := srcDriverConn.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("source connection is not a sqlite3 connection")
			}

			bk, err := destSQLiteConn.Backup("main", srcSQLiteConn, "main")
			if err != nil {
				return fmt.Errorf("start online backup: %w", err)
			}

			for {
				if err := ctx.Err(); err != nil {
					_ = bk.Finish()
					return err
				}
				done, err := bk.Step(backupStepPages)
				if err != nil {
					_ = bk.Finish()
					return fmt.Errorf("backup step: %w", err)
				}
				if done {
					break
				}
			}
			return bk.Finish()
		})
	})
}

// checkIntegrity opens path and runs PRAGMA integrity_check, the
// verification step spec.md §4.6 requires before the atomic rename.
func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open backup file for integrity check: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported %q", result)
	}
	return nil
}

// enforceRetainCount deletes the oldest tca-YYYYMMDD.db files in dir
// beyond retainCount, newest-first.
func enforceRetainCount(dir string, retainCount int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match("tca-[0-9][0-9][0-9][0-9][0-9][0-9][0-9][0-9].db", e.Name()); !ok {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if len(names) <= retainCount {
		return nil
	}
	for _, name := range names[:len(names)-retainCount] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove old backup %q: %w", name, err)
		}
	}
	return nil
}

// fail records a high-severity notification and returns the typed
// *BackupError spec.md §4.6 requires on any backup failure.
func (b *Backup) fail(ctx context.Context, errorType string, cause error, backupPath string, now time.Time) error {
	payload, merr := json.Marshal(map[string]any{
		"backup_path":   backupPath,
		"error_type":    errorType,
		"error_message": cause.Error(),
		"failed_at":     now,
	})
	if merr != nil {
		b.Logger.Error().Err(merr).Msg("encode backup failure notification payload")
	} else if _, nerr := b.Notifications.Create(ctx, &types.Notification{
		Type:      backupNotificationType,
		Severity:  types.SeverityHigh,
		Message:   fmt.Sprintf("nightly backup failed: %s", errorType),
		Payload:   payload,
		CreatedAt: now,
	}); nerr != nil {
		b.Logger.Error().Err(nerr).Msg("record backup failure notification")
	}

	return errs.Fatal(&BackupError{ErrorType: errorType, Cause: cause}, "backup failed: %s", errorType)
}
