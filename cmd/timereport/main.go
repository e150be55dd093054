package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	timereportcmd "github.com/timereport/timereport-cli/pkg/timereport/cmd"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := timereportcmd.DefaultConfig()
	cfg.OutputWriter = stdout
	cfg.ErrWriter = stderr
	root := timereportcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		// Not-logged-in has already been explained to the operator.
		if !errors.Is(err, timereportcmd.ErrNotLoggedIn) {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
