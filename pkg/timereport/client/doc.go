// Package client calls backend query and mutation functions over HTTP on
// behalf of a logged-in timereport user.
package client
