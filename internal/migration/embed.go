package migration

import "embed"

const migrationsDir = "migrations"

// Statements the ORM schema tags cannot express, such as partial indexes.
// Each file must be valid on both postgres and sqlite.
//
//go:embed migrations/*.up.sql
var embeddedMigrations embed.FS
