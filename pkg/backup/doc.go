// Package backup exports shared-scope knowledge to portable snapshot
// files and merges snapshots back in. Two formats are supported: JSONL
// for diff-friendly version control and Parquet for analytical tooling.
// Imports merge by modification time, so exchanging snapshots between
// machines converges on the newest version of each record.
package backup
