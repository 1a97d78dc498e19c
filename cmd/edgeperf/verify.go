package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/go-edge-perf/internal/catalog"
	"github.com/example/go-edge-perf/internal/harness"
	"github.com/example/go-edge-perf/internal/onnx"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run one zero-input inference per selected model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			runCfg, err := cfg.RunConfig()
			if err != nil {
				return err
			}

			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			rt, err := bootstrapRuntime(cfg.Runtime)
			if err != nil {
				return fmt.Errorf("onnx runtime: %w", err)
			}

			loader := newLoader(runnerConfig(cfg, rt, runCfg.Threads))

			var failures []string

			for _, e := range cat.Select(runCfg.OnlyTest) {
				path := harness.ModelPath(cfg.Paths.ModelDir, e.Name, cfg.Paths.ModelExt)

				if err := smokeModel(cmd.Context(), loader, e, path); err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", e.Name, err)
					failures = append(failures, e.Name)

					continue
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "PASS %s\n", e.Name)
			}

			if len(failures) > 0 {
				return fmt.Errorf("verify failed for %d model(s): %s", len(failures), strings.Join(failures, ", "))
			}

			return nil
		},
	}
}

// smokeModel loads one model under the inference-only guard and runs a
// single zero tensor through it.
func smokeModel(ctx context.Context, loader harness.Loader, e catalog.Entry, path string) error {
	release := onnx.EnterMode(onnx.InferenceOnly())
	defer release()

	meta := onnx.ImageSession(e.Name, path, e.InputName, e.OutputName, 1, e.Resolution)

	m, err := loader.Load(ctx, meta, onnx.ActiveMode())
	if err != nil {
		return err
	}
	defer m.Close()

	in := meta.Inputs[0]

	t, err := onnx.NewZeroTensor(in.DType, in.Shape)
	if err != nil {
		return fmt.Errorf("build input %q tensor: %w", in.Name, err)
	}

	out, err := m.Classify(ctx, t)
	if err != nil {
		return fmt.Errorf("run inference: %w", err)
	}

	if shape := out.Shape(); len(shape) != 2 || shape[0] != 1 {
		return fmt.Errorf("output shape %v, want [1, classes]", shape)
	}

	return nil
}

