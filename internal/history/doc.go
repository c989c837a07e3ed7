// Package history persists finished gradings in SQLite so results can be
// listed, inspected, and turned into reports again later.
//
// Each terminal upload (succeeded or failed) becomes one Record holding the
// submission ID, the signed-in email, optional subject and paper labels, the
// selected file names, and either the decoded result or the failure message.
// The schema is versioned in schema.go; after a schema change users delete
// history.db to adopt the new layout.
package history
