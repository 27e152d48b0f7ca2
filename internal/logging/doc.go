// Package logging constructs the slog loggers used across bookspool and
// provides shared attribute helpers.
package logging
