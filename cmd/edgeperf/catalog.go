package main

import (
	"encoding/json"
	"fmt"

	"github.com/example/go-edge-perf/internal/config"
	"github.com/example/go-edge-perf/internal/harness"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the models a run would process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			format, err := config.NormalizeFormat(cfg.Report.Format)
			if err != nil {
				return err
			}

			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			entries := cat.Select(cfg.Harness.OnlyTest)
			out := cmd.OutOrStdout()

			if format == config.FormatJSON {
				type row struct {
					Name       string `json:"name"`
					Resolution int    `json:"resolution"`
					USIEval    bool   `json:"usi_eval"`
					Path       string `json:"path"`
				}

				rows := make([]row, len(entries))
				for i, e := range entries {
					rows[i] = row{Name: e.Name, Resolution: e.Resolution, USIEval: e.USIEval, Path: harness.ModelPath(cfg.Paths.ModelDir, e.Name, cfg.Paths.ModelExt)}
				}

				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(rows)
			}

			_, _ = fmt.Fprintf(out, "%-24s  %5s  %3s  %s\n", "Model", "Res", "USI", "Path")

			for _, e := range entries {
				usi := ""
				if e.USIEval {
					usi = "yes"
				}

				_, _ = fmt.Fprintf(out, "%-24s  %5d  %3s  %s\n", e.Name, e.Resolution, usi, harness.ModelPath(cfg.Paths.ModelDir, e.Name, cfg.Paths.ModelExt))
			}

			return nil
		},
	}
}
