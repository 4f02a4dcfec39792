// Package internal holds the portal server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, response helpers and routing
// - domain: access keys, users, photo sections and page content
// - storage: the store contract and its memory, sqlite and postgres backends
// - auth, audit, notify: identity, audit trail and Discord notifications
// - config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
