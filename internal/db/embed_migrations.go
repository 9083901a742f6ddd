package db

import "embed"

// MigrationFS holds the schema for users, user_tokens, sessions and audit_logs.
// cmd/migrate applies it through the migrate package.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
