// Command reportctl administers the finassist report store: schema
// migrations, record import and report generation from the shell.
package main

import (
	"os"
)

func main() {
	root, a := newRootCmd(os.Stdout, os.Stderr)
	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}
