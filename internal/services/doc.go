// Package services provides the shared error taxonomy and retry helpers used
// by the acquisition pipeline and the playback session.
package services
