// Package internal documents the EventPlus server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem documents, and routing
// - domain: users, events, attendance and the comment pipeline
// - storage: the postgres store and an in-memory store for tests
// - jobs: River workers for moderation retries and stale comment sweeps
// - moderation: text-safety classifiers behind a two-valued verdict
// - auth, audit, config, email, i18n, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
