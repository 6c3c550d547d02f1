// Command poof runs programs against a throwaway copy-on-write view of
// the host filesystem. Writes land in an overlay upper layer that is
// discarded, persisted, or interactively reviewed on exit.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/poof-sh/poof/errdefs"
	"github.com/poof-sh/poof/sandbox"
)

// sandbox init
func init() {
	sandbox.Init()
}

func main() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "poof: %v\n", err)
		if hint := errdefs.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
	os.Exit(exitCode)
}
