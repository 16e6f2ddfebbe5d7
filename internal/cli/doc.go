// Package cli parses the command-line surface of the selftrain binary and
// translates it into an app.Config.
package cli
