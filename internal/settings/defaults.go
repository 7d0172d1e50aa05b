package settings

import (
	"embed"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/tca/internal/errs"
)

//go:embed defaults.yaml
var defaultsFS embed.FS

// defaultTable decodes defaults.yaml once into a plain map, following the
// same yaml.Unmarshal(data, &target) shape as
// _examples/cuemby-warren/cmd/warren/apply.go.
func defaultTable() (map[string]any, error) {
	data, err := defaultsFS.ReadFile("defaults.yaml")
	if err != nil {
		return nil, errs.Fatal(err, "read embedded settings defaults")
	}
	var table map[string]any
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, errs.Fatal(err, "parse embedded settings defaults")
	}
	return table, nil
}

// RequiredKeys are the keys spec.md §6 requires to exist after boot.
var RequiredKeys = []string{
	"scheduler.default_poll_interval_seconds",
	"scheduler.max_pages_per_poll",
	"scheduler.max_messages_per_poll",
	"dedupe.default_horizon_minutes",
	"dedupe.title_similarity_threshold",
	"dedupe.rare_token_max_frequency",
	"retention.raw_messages_days",
	"retention.items_days",
	"retention.ingest_errors_days",
	"backup.retain_count",
}
