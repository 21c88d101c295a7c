package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/slideshow/internal/album"
)

func newAlbumCommand(ctx *commandContext) *cobra.Command {
	albumCmd := &cobra.Command{
		Use:   "album",
		Short: "Manage album manifests",
	}
	albumCmd.AddCommand(newAlbumInitCommand(ctx))
	return albumCmd
}

func newAlbumInitCommand(ctx *commandContext) *cobra.Command {
	var title string
	var outDir string
	var interval time.Duration
	var transition string

	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Write a manifest listing the images in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := album.FromDir(args[0], title)
			if err != nil {
				return err
			}
			flags := sessionFlags{interval: interval, transition: transition}
			if err := flags.apply(a); err != nil {
				return err
			}
			if a.Interval == 0 {
				a.Interval = cfg.SlideInterval
			}

			dir := outDir
			if dir == "" {
				dir = args[0]
			}
			path := album.GeneratePath(dir, time.Now())
			if dir != args[0] {
				if err := a.MakeAbsolute(); err != nil {
					return err
				}
			}
			if err := album.Write(a, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d images\n", path, len(a.Images))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Album title")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for the manifest (default: the image directory)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time each slide stays on screen")
	cmd.Flags().StringVar(&transition, "transition", "", "Transition mode: directional or random-exit")
	return cmd
}
