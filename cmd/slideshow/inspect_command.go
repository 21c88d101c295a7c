package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ivlev/slideshow/internal/media"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [dir | album.yaml | files...]",
		Short: "Ingest files and show what a presentation would contain",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAlbum(args)
			if err != nil {
				return err
			}
			presenter, _, cleanup, err := ctx.openPresenter(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			files := a.Files()
			assets, err := presenter.Ingest(cmd.Context(), files)
			if err != nil {
				return err
			}
			defer presenter.Release(assets)

			fmt.Fprintln(cmd.OutOrStdout(), renderAssets(assets))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d files usable", len(assets), len(files))
			if dropped := len(files) - len(assets); dropped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d dropped", dropped)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func renderAssets(assets []*media.Asset) string {
	rows := make([][]string, 0, len(assets))
	for i, a := range assets {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			a.Name,
			a.Format,
			fmt.Sprintf("%dx%d", a.Width, a.Height),
			humanize.Bytes(uint64(a.Size)),
		})
	}
	return renderTable(
		[]string{"#", "Name", "Format", "Dimensions", "Size"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	)
}
