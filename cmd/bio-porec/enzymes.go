package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/porec/cutsite"
	"v.io/x/lib/cmdline"
)

func newCmdEnzymes() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "enzymes",
		Short: "List the built-in restriction enzymes and their cut sites",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("enzymes takes no arguments, but got %v", argv)
		}
		table := cutsite.DefaultEnzymes()
		for _, name := range table.Names() {
			p, _ := table.Lookup(name)
			fmt.Fprintf(env.Stdout, "%s\t%s\n", name, p.Site())
		}
		return nil
	})
	return cmd
}
