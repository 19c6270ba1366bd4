package db

import "embed"

// EmbedMigrations holds the goose migrations of the model store.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
