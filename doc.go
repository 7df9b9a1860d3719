// Package recall is a persistent, schema-flexible memory store for AI
// coding assistants.
//
// Knowledge is kept as typed records with free-form custom fields, linked
// into a relationship graph, and retrieved through a hybrid search
// pipeline that fuses keyword relevance with embedding similarity and
// adjusts ranking to the session's working context. Supporting subsystems
// score record quality, age out stale knowledge, and exchange
// shared-scope snapshots between machines.
//
// The Recall interface is the single entry point; New assembles it from
// configuration. See the pkg subdirectories for the individual layers:
// store (persistence), index (search providers), search (the retrieval
// pipeline), graph, quality, retention, and backup.
package recall
