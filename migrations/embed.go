// Package migrations embeds the SQL schema so the binary can migrate the
// database without the files on disk. Import it for its side effect.
package migrations

import (
	"embed"

	"github.com/nerrad567/procwarden/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
