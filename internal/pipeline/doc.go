// Package pipeline runs the one-shot acquisition workflow: discover source
// files on the web source, download them into staging, compute the segment
// plan, combine where the plan says so, upload the results with a generated
// table of contents, and record the book in the local catalog.
//
// A flock-guarded lock file keeps concurrent runs from interleaving staging
// writes. Planner failures abort the run before anything is uploaded, so the
// remote store and the catalog never see a partial book.
package pipeline
