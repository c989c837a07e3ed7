// Package main hosts the evalo CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into sign-in flows,
// grading submissions, report downloads, and history queries. It centralizes
// configuration resolution, logger construction, and the identity session so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
