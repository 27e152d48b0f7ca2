// Package planner decides how downloaded source files become playback
// segments: pass each file through unchanged when every file already fits
// the segment bounds, or greedily combine files in source order into
// bounded segments otherwise. Planning is a pure function of its input.
package planner
