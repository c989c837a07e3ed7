// Package upload drives one grading submission from file selection to a
// terminal result.
//
// A Workflow owns the two selected documents and a single state value
// (idle, uploading, succeeded, or failed). Submit issues the real grading
// request and, alongside it, plays a simulated progress Timeline through a
// Scheduler so the user sees movement while the remote service works. The
// timeline is informational only: the terminal state always comes from the
// grading response, and every scheduled callback is tagged with the
// submission generation so late ticks after a Reset are dropped.
//
// Observers receive every state write through Subscribe, in order. The CLI
// uses this to drive its progress bar and to persist history.
package upload
