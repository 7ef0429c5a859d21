// Command quotectl maintains the quote store offline: export and import
// snapshots, add quotes, and run sync cycles against the remote from a
// terminal. It reads the same configuration as the service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
