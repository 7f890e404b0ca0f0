package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/holon-run/buildbridge/pkg/log"
	"github.com/holon-run/buildbridge/pkg/pipeline"
)

var buildProject string
var buildTargets string
var buildRunID string
var buildBranch string
var buildUpload bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a local Unity project once",
	Long: `Build every target of a local project without a webhook.

With --upload the artifacts are published to the configured store and the
download links are printed; otherwise the local artifact paths are printed.
The command fails when any target fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		project, err := filepath.Abs(buildProject)
		if err != nil {
			return fmt.Errorf("failed to resolve project path: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx, cfg, appOptions{upload: buildUpload, targets: buildTargets})
		if err != nil {
			return err
		}
		defer a.Close()

		outcomes, results, summary := a.pipeline.BuildLocal(ctx, pipeline.LocalRequest{
			ProjectPath: project,
			RunID:       buildRunID,
			Branch:      buildBranch,
		})

		out := cmd.OutOrStdout()
		for i, r := range results {
			if r.Success {
				fmt.Fprintf(out, "✅ %s: %s\n", r.Target, r.LinkURL())
				continue
			}
			fmt.Fprintf(out, "❌ %s: %s\n", r.Target, r.Error)
			log.Debug("target failed", "target", outcomes[i].Target, "build_success", outcomes[i].Success)
		}
		fmt.Fprintf(out, "%d/%d targets succeeded\n", summary.Succeeded, summary.Total)

		if cfg.Server.PushGateway != "" {
			if err := a.metrics.Push(ctx, cfg.Server.PushGateway, "buildbridge"); err != nil {
				log.Warn("failed to push metrics", "error", err)
			}
		}

		if summary.Failed() > 0 {
			return fmt.Errorf("%d of %d targets failed", summary.Failed(), summary.Total)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildProject, "project", "P", ".", "Path to the Unity project")
	buildCmd.Flags().StringVarP(&buildTargets, "targets", "t", "", "Targets to build, comma separated (default: $UNITY_BUILD_TARGET or config)")
	buildCmd.Flags().StringVar(&buildRunID, "run-id", "local", "Run id used in output paths and artifact keys")
	buildCmd.Flags().StringVar(&buildBranch, "branch", "local", "Branch name used in artifact keys")
	buildCmd.Flags().BoolVar(&buildUpload, "upload", false, "Upload artifacts to the configured store")
	rootCmd.AddCommand(buildCmd)
}
