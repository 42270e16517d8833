package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the progress schema, applied by the migrate command.
var Migrations = migrate.NewMigrations()
