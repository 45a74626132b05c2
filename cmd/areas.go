package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest-guardian/regen-insights/internal/sentinel"
	"github.com/forest-guardian/regen-insights/internal/ui"
)

func newAreasCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "areas PROJECT",
		Short: "List the areas of a project geojson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := sentinel.ProjectGeoJSONPath(a.cfg.RootPath, args[0])
			areas, err := sentinel.ListAreas(path)
			if err != nil {
				return err
			}
			ui.PrintInfo(fmt.Sprintf("Areas in %s:", path))
			for i, area := range areas {
				geometry, err := sentinel.GetAreaGeometry(path, area)
				if err != nil {
					return err
				}
				lat, lon, err := sentinel.GetCentroidLatitudeLongitude(geometry)
				if err != nil {
					fmt.Printf("%d. %s\n", i+1, area)
					continue
				}
				fmt.Printf("%d. %s (%.5f, %.5f)\n", i+1, area, lat, lon)
			}
			return nil
		},
	}
}
