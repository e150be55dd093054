// Package system holds process-wide helpers shared by the timereport packages,
// currently logger construction.
package system
