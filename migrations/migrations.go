// Package migrations embeds tca's numbered SQL schema migrations so both
// the server binary and the standalone tca-migrate CLI apply the exact same
// files without a runtime dependency on the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
