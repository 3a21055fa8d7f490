// Package thread builds the evolving thread overview for watched patch
// cards: it reconstructs reply hierarchies from stored feed messages,
// prepares per-sub-patch overview data for the platform renderers, creates
// the platform thread on a watch command, and keeps individual overview
// messages current as new replies arrive.
package thread
