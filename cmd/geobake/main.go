// geobake bakes meshes and scattered instances into compact binary files for
// a WebGL-style client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/Faultbox/geobake/internal/config"
	"github.com/Faultbox/geobake/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newApp().RunContext(ctx, os.Args)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "geobake",
		Usage:                "bake meshes, grids and instance tiles into client binary formats",
		Flags:                config.GlobalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:      "mesh",
				Usage:     "encode a PLY mesh into an ITRI triangle file",
				ArgsUsage: "<mesh.ply>",
				Flags:     config.MeshFlags(),
				Action:    meshAction,
			},
			{
				Name:      "grid",
				Usage:     "bin mesh vertices or points into a spatial grid file",
				ArgsUsage: "<points.ply|points.pcd>",
				Flags:     config.GridFlags(),
				Action:    gridAction,
			},
			{
				Name:      "tiles",
				Usage:     "derive instances and write tile files plus a manifest",
				ArgsUsage: "<points.ply|points.pcd>",
				Flags:     config.TilesFlags(),
				Action:    tilesAction,
			},
			{
				Name:      "inspect",
				Usage:     "print the header of ITRI, grid, tile or manifest files",
				ArgsUsage: "<file>...",
				Action:    inspectAction,
			},
			{
				Name:  "config",
				Usage: "work with configuration files",
				Subcommands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "write the default configuration",
						ArgsUsage: "[path]",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite an existing file"},
						},
						Action: configInitAction,
					},
				},
			},
		},
	}
}
