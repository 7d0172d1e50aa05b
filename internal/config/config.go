package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cuemby/tca/internal/errs"
)

// Mode gates which startup unlock path the process takes (spec.md §4.7).
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeAutoUnlock  Mode = "auto-unlock"
)

// LogLevel is spec.md §6's closed enum for process-wide logging.
type LogLevel string

const (
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

// Config is the static configuration loaded once at boot and never reread,
// per spec.md §6: `db_path`, `bind`, `mode`, `log_level`, `secret_file`.
// Tagged for github.com/caarlos0/env/v11, the same library and tagging
// style as _examples/adred-codev-ws_poc/ws's Config.
type Config struct {
	DBPath     string   `env:"TCA_DB_PATH" envDefault:"./data/tca.db"`
	Bind       string   `env:"TCA_BIND" envDefault:"127.0.0.1:8686"`
	Mode       Mode     `env:"TCA_MODE" envDefault:"interactive"`
	LogLevel   LogLevel `env:"TCA_LOG_LEVEL" envDefault:"INFO"`
	SecretFile string   `env:"TCA_SECRET_FILE" envDefault:""`
	NATSURL    string   `env:"TCA_NATS_URL" envDefault:""`
	BackupDir  string   `env:"TCA_BACKUP_DIR" envDefault:"./data/backups"`

	// BootstrapTokenFile is where the first-boot bearer token's plaintext
	// is written once, mode 0600 (spec.md §4.7, §6).
	BootstrapTokenFile string `env:"TCA_BOOTSTRAP_TOKEN_FILE" envDefault:"./data/bootstrap-token"`
}

// Load reads .env (if present, for local development) then the process
// environment into a Config, matching the teacher-grounded
// "ENV vars > .env file > defaults" precedence from
// _examples/adred-codev-ws_poc/ws's LoadConfig, then validates it.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil && !os.IsNotExist(err) {
			logger.Info().Err(err).Msg("no .env file loaded, using process environment only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errs.Fatal(err, "parse environment configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces spec.md §6's strict-validation rule: empty values and
// unknown enum values fail startup with a typed error naming the variable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errs.Validation("TCA_DB_PATH must not be empty")
	}
	if c.Bind == "" {
		return errs.Validation("TCA_BIND must not be empty")
	}

	switch c.Mode {
	case ModeInteractive, ModeAutoUnlock:
	default:
		return errs.Validation("TCA_MODE must be one of %q, %q; got %q", ModeInteractive, ModeAutoUnlock, c.Mode)
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelCritical:
	default:
		return errs.Validation("TCA_LOG_LEVEL must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL; got %q", c.LogLevel)
	}

	if c.BackupDir == "" {
		return errs.Validation("TCA_BACKUP_DIR must not be empty")
	}
	if c.BootstrapTokenFile == "" {
		return errs.Validation("TCA_BOOTSTRAP_TOKEN_FILE must not be empty")
	}

	return nil
}

// String renders the config with secret-adjacent fields elided, safe to log
// at startup.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DBPath:%s Bind:%s Mode:%s LogLevel:%s SecretFile:%s BackupDir:%s BootstrapTokenFile:%s}",
		c.DBPath, c.Bind, c.Mode, c.LogLevel, redactPath(c.SecretFile), c.BackupDir, c.BootstrapTokenFile)
}

func redactPath(p string) string {
	if p == "" {
		return "(unset)"
	}
	return "(set)"
}
