// Package main implements the treefind command: an MCP server for find and
// replace across a notebook, and a one-shot find command.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	httpAddr   string
	logLevel   string
	watch      bool
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "treefind [notebook-path]",
		Short: "Find and replace across a notebook of nodes",
		Long: `treefind is a Model Context Protocol (MCP) server that searches a
notebook: a tree of nodes whose text carries embedded code blocks,
tables, images, anchors, files and hyperlinks. It finds and replaces
across node boundaries and inside embedded objects, keeps per-session
state for find again / find back / replace again, and writes changes
back to the notebook files.`,
		Example: `treefind ~/notes
treefind --http :8080 ~/notes
treefind find --regex 'TODO\((\w+)\)' ~/notes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags, args)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(cmd.Context())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.httpAddr, "http", "", "Serve MCP over streamable HTTP on this address instead of stdio")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "Reload the notebook when its files change")

	cmd.AddCommand(newFindCmd(flags))
	return cmd
}
