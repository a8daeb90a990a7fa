// Package catalog records persisted remaster batches in SQLite.
//
// Every batch written to a project folder gets a row: its ID, project name,
// folder, source composite path, and panel paths. The CLI lists them with
// `director batches`. The database lives in the state directory and uses a
// single embedded schema guarded by a version row; a mismatched version is
// an error rather than a migration.
package catalog
