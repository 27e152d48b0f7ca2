// Package notifications delivers user-visible notices via ntfy.
//
// The service publishes to the topic configured in config.toml and degrades
// to a no-op when no topic is set. Notice categories (fetch, upload,
// playback, errors) can be toggled individually. Playback notices are
// fire-and-forget so the playback control loop never blocks on or fails due
// to notification delivery.
package notifications
