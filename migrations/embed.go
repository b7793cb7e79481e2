// Package migrations embeds the bridge's SQL schema. Importing it registers
// the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.SetMigrations(files, ".")
}
