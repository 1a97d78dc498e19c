package main

import (
	"errors"
	"fmt"

	"github.com/example/go-edge-perf/internal/doctor"
	"github.com/example/go-edge-perf/internal/harness"
	"github.com/example/go-edge-perf/internal/onnx"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var skipRuntime bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime, catalog and model file checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			dcfg := doctor.Config{
				Runtime: func() (string, string, error) {
					info, err := onnx.DetectRuntime(cfg.Runtime)
					return info.LibraryPath, info.Version, err
				},
				SkipRuntime: skipRuntime,
				APIVersion:  cfg.Runtime.ORTAPIVersion,
				DatasetPath: cfg.Paths.DataPath,
				Validation:  cfg.Harness.Validation,
				LogicalCPUs: describeHost().LogicalCPUs,
			}

			cat, catErr := loadCatalog(cfg)
			dcfg.Catalog = func() (int, error) {
				if catErr != nil {
					return 0, catErr
				}

				return cat.Len(), nil
			}

			if catErr == nil {
				for _, e := range cat.Select(cfg.Harness.OnlyTest) {
					dcfg.ModelFiles = append(dcfg.ModelFiles, harness.ModelPath(cfg.Paths.ModelDir, e.Name, cfg.Paths.ModelExt))
				}
			}

			result := doctor.Run(dcfg, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					fmt.Fprintf(errOut, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRuntime, "skip-runtime", false, "Skip the ONNX Runtime library check")

	return cmd
}
