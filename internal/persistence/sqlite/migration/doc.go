// Package migration applies the versioned SQL files that define the SQLite
// room document schema.
//
// Files are named {version}_{description}.sql and are applied in numeric
// version order, each inside its own transaction. Applied versions and their
// checksums are recorded in the schema_migrations table; editing an applied
// file is reported as ErrChecksumMismatch instead of being re-run.
package migration
