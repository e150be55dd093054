// Package output renders CLI results: styled status lines for humans and
// JSON or YAML documents for scripts.
package output
