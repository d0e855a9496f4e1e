package migrations

import "embed"

// Files contém os scripts SQL versionados (NNNN_nome.up.sql / .down.sql).
//
//go:embed *.sql
var Files embed.FS
