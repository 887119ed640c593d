// Command cmapsync loads colormaps, keeps a persistent colormap selection and
// normalizes numeric buffers into colormap indices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.coder.com/cli"
)

type rootCmd struct{}

func (r *rootCmd) Spec() cli.CommandSpec {
	return cli.CommandSpec{
		Name:  "cmapsync",
		Usage: "[subcommand] [flags]",
		Desc:  "Normalize numeric buffers into colormap indices.",
	}
}

func (r *rootCmd) Run(fl *pflag.FlagSet) {
	fl.Usage()
}

func (r *rootCmd) Subcommands() []cli.Command {
	return []cli.Command{
		&listCmd{},
		&normalizeCmd{},
		&renderCmd{},
		&colorbarCmd{},
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
	os.Exit(33)
}

func main() {
	cli.RunRoot(&rootCmd{})
}
