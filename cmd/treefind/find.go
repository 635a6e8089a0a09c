package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/treefind/internal/search"
	"github.com/taigrr/treefind/internal/types"
)

type findFlags struct {
	regex              bool
	caseSensitive      bool
	wholeWord          bool
	startWord          bool
	accents            bool
	names              bool
	backward           bool
	overrideExclusions bool
	replacement        string
}

func newFindCmd(root *rootFlags) *cobra.Command {
	ff := &findFlags{}
	cmd := &cobra.Command{
		Use:   "find <pattern> [notebook-path]",
		Short: "Print every match in the notebook, or replace them all with --replace",
		Example: `treefind find alpha ~/notes
treefind find --regex --replace 'v$1' 'version (\d+)' ~/notes`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(root, args[1:])
			if err != nil {
				return err
			}
			defer a.close()
			return a.runFind(cmd.Context(), cmd.OutOrStdout(), args[0], ff, cmd.Flags().Changed("replace"))
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&ff.regex, "regex", "e", false, "Treat the pattern as a regular expression")
	f.BoolVarP(&ff.caseSensitive, "case-sensitive", "s", false, "Match case")
	f.BoolVarP(&ff.wholeWord, "whole-word", "w", false, "Only match whole words")
	f.BoolVar(&ff.startWord, "start-word", false, "Only match at the start of a word")
	f.BoolVarP(&ff.accents, "accents", "a", false, "Ignore accents")
	f.BoolVar(&ff.names, "names", false, "Also search node names and tags")
	f.BoolVar(&ff.backward, "backward", false, "List matches from the end of the notebook")
	f.BoolVar(&ff.overrideExclusions, "all", false, "Also search nodes excluded from search")
	f.StringVarP(&ff.replacement, "replace", "r", "", "Replace every match with this text and save")
	return cmd
}

func (a *app) runFind(ctx context.Context, w io.Writer, pattern string, ff *findFlags, replace bool) error {
	opts := types.SearchOptions{
		Pattern:            pattern,
		Replacement:        ff.replacement,
		CaseSensitive:      ff.caseSensitive,
		UseRegex:           ff.regex,
		AccentInsensitive:  ff.accents,
		WholeWord:          ff.wholeWord,
		StartWord:          ff.startWord,
		OverrideExclusions: ff.overrideExclusions,
		SearchContent:      true,
		SearchNameAndTags:  ff.names,
	}
	a.cfg.Search.Apply(&opts)
	if ff.backward {
		opts.Direction = types.Backward
	}

	tree := a.fs.Tree()
	s := search.NewSession(tree, tree, tree,
		search.WithLogger(a.logger.Named("search")),
		search.WithObserver(a.metrics),
		search.WithPreviewWidth(a.cfg.Search.PreviewWidth),
	)
	req := search.Request{Options: opts, Target: types.TargetAllNodes}

	var (
		res search.Result
		err error
	)
	if replace {
		res, err = s.ReplaceAll(ctx, req)
	} else {
		res, err = s.FindAll(ctx, req)
	}
	if err != nil {
		return err
	}

	for _, skipped := range res.Skipped {
		a.logger.Warn("node skipped", zap.Error(skipped))
	}
	for _, rec := range res.Records {
		fmt.Fprintln(w, formatRecord(rec))
	}

	if !replace {
		fmt.Fprintf(w, "%d matches\n", res.Count)
		return nil
	}
	saved, err := a.fs.Save()
	if err != nil {
		return fmt.Errorf("failed to save notebook: %w", err)
	}
	fmt.Fprintf(w, "%d matches, %d nodes saved\n", res.Count, saved)
	return nil
}

// formatRecord renders a match as "path:line: text", in the style of grep.
func formatRecord(rec types.MatchRecord) string {
	where := fmt.Sprintf("%s:%d", rec.NodePath, rec.Line)
	switch {
	case rec.InName:
		where = rec.NodePath + " (name)"
	case rec.Object != nil:
		where = fmt.Sprintf("%s [%s]", where, rec.Object.Kind)
	}
	if rec.Replaced {
		where += " (replaced)"
	}
	return where + ": " + rec.LineContent
}
