// Package notifications delivers grading events to an ntfy topic.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Enumerated event types cover grading outcomes so the CLI can emit
// consistent messages without duplicating HTTP glue. Per-event toggles in
// [notifications] suppress events the user does not want pushed.
package notifications
