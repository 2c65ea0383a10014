package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/builder"
	"github.com/firefly-engineering/browserbox/internal/errors"
)

var (
	buildVersion  string
	buildForce    bool
	buildNoCache  bool
	buildKeepBase bool
	buildQuiet    bool
)

var buildCmd = &cobra.Command{
	Use:   "build [browser...]",
	Short: "Build sandbox images with the recording sidecar",
	Long: `Build a sandbox image for each browser (all supported browsers when none
are given). Each image extends the upstream standalone image with ffmpeg.

Images that already exist are skipped unless --force is set.

Supported browsers: ` + strings.Join(browser.SupportedNames(), ", "),
	Example: `  browserbox build
  browserbox build chrome --version 120.0`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildVersion, "version", browser.DefaultVersion, "Browser version tag to build")
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "Rebuild even if the image exists")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Do not use the build cache")
	buildCmd.Flags().BoolVar(&buildKeepBase, "keep-base", false, "Keep the upstream base image after building")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "Do not stream build output")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	types := browser.Supported()
	if len(args) > 0 {
		types = types[:0:0]
		for _, a := range args {
			t, err := browser.ParseType(a)
			if err != nil {
				return errors.ValidationError(err.Error())
			}
			types = append(types, t)
		}
	}

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()
	if buildQuiet {
		out = nil
	}
	b, err := app.Default.Builder(ctx, out)
	if err != nil {
		return err
	}
	b.NoCache = buildNoCache
	b.KeepBase = buildKeepBase

	_, err = b.BuildAll(ctx, types, builder.Options{Version: buildVersion, Force: buildForce})
	return err
}
