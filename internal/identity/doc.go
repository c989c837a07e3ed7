// Package identity signs users in against a hosted identity provider and
// keeps the resulting session on disk.
//
// Email/password and account creation go straight to the provider's REST
// API. Google sign-in runs an OAuth authorization-code flow with PKCE against
// a loopback redirect, verifies the returned ID token, and exchanges it with
// the provider. Manager owns the signed-in Principal and notifies subscribers
// registered through OnAuthStateChanged whenever it changes; the session file
// is guarded by a file lock so concurrent evalo processes see a consistent
// view.
package identity
