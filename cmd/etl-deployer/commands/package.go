package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/packager"
)

// PackageCommand returns the package command that builds the trigger artifact
func PackageCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "package",
		Usage: "Build the trigger function deployment archive",
		Description: `Assembles the trigger function sources (and, depending on the variant,
its Python dependencies) into a deterministic zip archive. The staging
directory is cleared before every build, test and cache files are pruned,
and a content hash is recorded so unchanged sources skip the rebuild.

Variants:
  none         sources only, no dependencies installed
  lightweight  sources plus the lightweight dependency set
  all          sources plus every dependency; heavy dependencies go into a
               separate layer archive when the manifest enables one

Examples:
  etl-deployer package --manifest lambda/manifest.yml --variant lightweight
  etl-deployer package --manifest lambda/manifest.yml --variant all --layer-output dist/layer.zip`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "Path to the packaging manifest",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "variant",
				Usage:   "Dependency variant: none, lightweight, or all",
				Value:   string(packager.VariantNone),
				EnvVars: []string{"PACKAGE_VARIANT"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output archive path",
				Value:   "dist/trigger.zip",
			},
			&cli.StringFlag{
				Name:  "layer-output",
				Usage: "Layer archive path, used with --variant all when the manifest enables a layer",
				Value: "dist/layer.zip",
			},
			&cli.StringFlag{
				Name:  "staging",
				Usage: "Staging directory, cleared before every build",
				Value: "dist/staging",
			},
			&cli.BoolFlag{
				Name:  "no-install",
				Usage: "Skip dependency installation regardless of variant",
			},
		},
		Action: func(c *cli.Context) error {
			variant, err := packager.ParseVariant(c.String("variant"))
			if err != nil {
				return err
			}

			manifest, err := packager.LoadManifest(c.String("manifest"))
			if err != nil {
				return err
			}

			var installer packager.Installer = packager.NewPipInstaller()
			if c.Bool("no-install") {
				installer = packager.NoopInstaller{}
			}

			ctx := logger.WithContext(c.Context)
			rebuilt, err := packager.New(manifest, installer).Build(ctx, packager.Options{
				Variant:         variant,
				StagingDir:      c.String("staging"),
				OutputPath:      c.String("output"),
				LayerOutputPath: c.String("layer-output"),
			})
			if err != nil {
				return err
			}

			if rebuilt {
				fmt.Printf("✓ Built %s (%s variant)\n", c.String("output"), variant)
			} else {
				fmt.Printf("- %s is up to date, skipped rebuild\n", c.String("output"))
			}
			return nil
		},
	}
}
