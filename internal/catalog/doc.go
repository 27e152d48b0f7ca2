// Package catalog holds the shared book/segment data model and the
// SQLite-backed catalog store written at ingestion time and read by the
// playback side.
package catalog
