// Package retention ages out stored knowledge. Archival flips old records
// of a type into a cold state where default searches skip them; sweeping
// physically removes expired records. Shared-scope records are never
// deleted by the sweeper, only archived, since other sessions may still
// depend on them.
package retention
