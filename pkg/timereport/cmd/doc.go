// Package cmd implements the cobra command tree for the timereport CLI:
// browser login and logout, timer control, manual time entries, settings and
// shell completion.
package cmd
