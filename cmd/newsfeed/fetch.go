package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"daily-news-parser/internal/app"
	"daily-news-parser/internal/feed"
	"daily-news-parser/internal/normalize"
)

func fetchCmd() *cobra.Command {
	var (
		asJSON   bool
		limit    int
		category string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one fetch cycle over all sources and print the merged feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.GracefulShutdown(signalLogger(), timeout)
			defer cancel()

			deps, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			stats, err := deps.orchestrator.RunCycle(ctx)
			if err != nil && stats == nil {
				return err
			}
			if err != nil {
				deps.logger.Error("Cycle finished with storage error", "error", err.Error())
			}

			result, err := deps.snapshot.Get(ctx)
			if err != nil {
				return fmt.Errorf("read feed: %w", err)
			}
			page := feed.Apply(result.Articles, feed.Query{Category: category, Limit: limit})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(page.Articles)
			}

			printFeed(out, page)
			printStatuses(out, deps.orchestrator)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print articles as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of articles to print (0 = all)")
	cmd.Flags().StringVar(&category, "category", "", "only print articles of this category")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the cycle")
	return cmd
}

func printFeed(w io.Writer, page feed.Page) {
	rows := [][]string{{"DATE", "SOURCE", "CATEGORY", "TITLE"}}
	for _, a := range page.Articles {
		title := a.Title
		if a.Placeholder {
			title = "[unavailable] " + title
		}
		rows = append(rows, []string{normalize.FormatISO(a.Date), a.SourceName, a.Category, truncateWidth(title, 80)})
	}
	writeTable(w, rows)
	fmt.Fprintf(w, "\n%d of %d articles\n\n", page.Visible, page.Total)
}

func printStatuses(w io.Writer, o *app.Orchestrator) {
	rows := [][]string{{"SOURCE", "STATUS", "ARTICLES", "DURATION", "ERROR"}}
	for _, st := range o.Statuses() {
		status := "ok"
		if st.Failed {
			status = "failed"
		}
		rows = append(rows, []string{
			st.Name,
			status,
			fmt.Sprint(st.Articles),
			(time.Duration(st.DurationMS) * time.Millisecond).String(),
			truncateWidth(st.Error, 60),
		})
	}
	writeTable(w, rows)
}
