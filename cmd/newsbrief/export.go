package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deusflow/newsbrief/internal/config"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/storage"
)

func exportCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Rewrite the JSON export and archive index from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			newsletters := cfg.Newsletters
			if name != "" {
				n, err := cfg.Newsletter(name)
				if err != nil {
					return err
				}
				newsletters = []config.Newsletter{n}
			}
			for _, n := range newsletters {
				if err := export(cmd.Context(), n); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "newsletter", "", "export only the named newsletter")
	return cmd
}

func export(ctx context.Context, n config.Newsletter) error {
	store, err := storage.Open(ctx, n.DBDriver, n.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	path := storage.ExportPath(n.DBName)
	count, err := store.ExportJSON(ctx, path)
	if err != nil {
		return fmt.Errorf("export %s: %w", n.Name, err)
	}
	logger.Info("store exported", "newsletter", n.Name, "path", path, "records", count)

	if n.MonthlyJSONEnabled {
		idx, err := storage.NewArchive(n.MonthlyJSONDir).UpdateIndex()
		if err != nil {
			return fmt.Errorf("rebuild archive index: %w", err)
		}
		logger.Info("archive index rebuilt", "months", len(idx.Months), "total", idx.TotalCount)
	}
	return nil
}
