/*
Package log provides tca's structured logging on top of zerolog.

	┌───────────────── LOGGING ─────────────────┐
	│  Init(Config) sets the global Logger       │
	│  WithComponent / WithChannelID /           │
	│  WithAccountID / WithCorrelationID derive   │
	│  child loggers carrying one extra field     │
	└─────────────────────────────────────────────┘

Levels follow spec.md §6's enum (DEBUG, INFO, WARNING, ERROR, CRITICAL)
rather than zerolog's own names; Init maps between them so the rest of the
module only ever sees the spec's vocabulary. CRITICAL maps to zerolog's
fatal level — logging at that level terminates the process, so it is
reserved for the same conditions spec.md §7 calls Fatal (migration failure,
missing required secret file, failed backup integrity check).

Initialization happens once, in cmd/tca/main.go, before any other
component starts; every other package takes a zerolog.Logger (usually via
one of the With* helpers) rather than reaching for the global Logger
directly, so tests can inject a buffer-backed logger instead.
*/
package log
