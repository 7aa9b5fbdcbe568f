// cmd/modgraph/main.go
//
// This is the entry point for the modgraph CLI.
//
// Subcommands:
//   init     create .modgraph/ with a default config.yaml
//   resolve  run one resolution pass and print the execution views
//   serve    resolve, then keep the views fresh (file watch, HTTP, NATS)
//   inspect  browse the views in a terminal UI

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const usage = `usage: modgraph <command> [flags]

Commands:
  init      create .modgraph/ in the project directory
  resolve   resolve the configuration once and print the execution views
  serve     resolve and keep serving views until interrupted
  inspect   browse the execution views in a terminal UI

Run "modgraph <command> --help" for the flags of a command.
`

// errRejected marks a configuration the resolver refused; the report has
// already been printed.
var errRejected = errors.New("configuration rejected")

type command func(opts *Options) error

var commands = map[string]command{
	"init":    runInit,
	"resolve": runResolve,
	"serve":   runServe,
	"inspect": runInspect,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	name := args[0]
	if name == "-h" || name == "--help" || name == "help" {
		fmt.Fprint(os.Stdout, usage)
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "modgraph: unknown command %q\n\n%s", name, usage)
		return 2
	}
	opts := NewOptions()
	fs := pflag.NewFlagSet("modgraph "+name, pflag.ContinueOnError)
	opts.AddFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "modgraph %s: %v\n", name, err)
		return 2
	}
	if err := opts.Complete(); err != nil {
		fmt.Fprintf(os.Stderr, "modgraph %s: %v\n", name, err)
		return 2
	}
	if err := cmd(opts); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(os.Stderr, "modgraph %s: %v\n", name, err)
		}
		return 1
	}
	return 0
}
