package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/httputil"
	"github.com/canopyviz/canopy/pkg/pipeline"
	"github.com/canopyviz/canopy/pkg/search"
	"github.com/canopyviz/canopy/pkg/soa"
)

// searchCommand finds labels through a search worker. A local snapshot is
// searched by reading only its label sections.
func (c *CLI) searchCommand() *cobra.Command {
	var (
		flags treeFlags
		regex bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <input> <query>",
		Short: "Find labels in a tree, snapshot or graph document",
		Long: `Find labels by case-insensitive substring, or by regular expression
with --regex. Results are printed as "index<TAB>label" in point order.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := search.NewWorker(c.Logger)
			wctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go w.Run(wctx)

			load, err := c.searchInit(ctx, args[0], flags, cmd)
			if err != nil {
				return err
			}
			if err := do(ctx, w, load); err != nil {
				return err
			}

			resp, err := w.Do(ctx, search.Request{Type: search.TypeSearch, ID: 2, Query: args[1], Regex: regex, Limit: limit})
			if err != nil {
				return err
			}
			if resp.Type == search.TypeError {
				return errors.New(resp.Code, "%s", resp.Error)
			}
			return printResults(cmd.OutOrStdout(), resp.Results)
		},
	}

	cmd.Flags().BoolVar(&regex, "regex", false, "treat the query as a regular expression")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "maximum number of results")
	flags.register(cmd)
	return cmd
}

// searchInit returns the request that loads input's labels into the worker.
func (c *CLI) searchInit(ctx context.Context, input string, flags treeFlags, cmd *cobra.Command) (search.Request, error) {
	if !httputil.IsURL(input) {
		if f, err := pipeline.Detect(input); err == nil && f == pipeline.FormatSnapshot {
			return search.Request{Type: search.TypeInitFile, ID: 1, Path: input}, nil
		}
	}

	opts := c.layoutOptions(input)
	flags.apply(cmd, &opts)
	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return search.Request{}, err
	}
	defer runner.Close()
	res, err := runner.Load(ctx, opts)
	if err != nil {
		return search.Request{}, err
	}
	if res.Buffers.Labels == nil {
		return search.Request{}, errors.New(errors.ErrCodeInvalidInput, "%s has no labels", input)
	}
	if bl, ok := res.Buffers.Labels.(*soa.BlobLabels); ok {
		return search.Request{Type: search.TypeInit, ID: 1, Blob: bl.Blob(), Offsets: bl.Offsets()}, nil
	}
	blob, offsets := soa.EncodeLabels(res.Buffers.Labels)
	return search.Request{Type: search.TypeInit, ID: 1, Blob: blob, Offsets: offsets}, nil
}

func do(ctx context.Context, w *search.Worker, req search.Request) error {
	resp, err := w.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.Type == search.TypeError {
		return errors.New(resp.Code, "%s", resp.Error)
	}
	return nil
}

func printResults(w io.Writer, results []search.Result) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", r.Index, r.Label); err != nil {
			return err
		}
	}
	return nil
}
