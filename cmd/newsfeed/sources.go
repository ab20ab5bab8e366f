package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"daily-news-parser/internal/config"
)

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Validate the sources file and list configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sources, err := loadConfig()
			if err != nil {
				return err
			}

			rows := [][]string{{"NAME", "CATEGORY", "RENDER", "ENABLED", "BASE URL"}}
			for _, src := range sources {
				rows = append(rows, []string{
					src.Name,
					src.Category,
					src.RenderMode(),
					fmt.Sprint(src.IsEnabled()),
					src.BaseURL,
				})
			}
			writeTable(cmd.OutOrStdout(), rows)

			for _, src := range sources {
				for _, w := range config.TransformerWarnings(src) {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
				}
			}
			return nil
		},
	}
}
