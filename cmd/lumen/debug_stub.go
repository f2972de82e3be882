//go:build !lumendebug

package main

import "errors"

var errUnknownCommand = errors.New("unknown command")

// runDebugCommand is a no-op in ordinary builds: the debug:* subcommands
// only exist in binaries built with -tags lumendebug, the way the teacher
// never shipped its own internal tooling in the default build either.
func runDebugCommand(cmd string, args []string) error {
	return errUnknownCommand
}
