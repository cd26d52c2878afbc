package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	idb "watering_notification_bot/internal/infra/database"
	"watering_notification_bot/internal/infra/logger"
	"watering_notification_bot/internal/infra/seed"
)

func newSeedCmd() *cobra.Command {
	var plantsPath, profilesPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import plants and monthly watering profiles from CSV or XLSX files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if plantsPath == "" && profilesPath == "" {
				return errors.New("nothing to import: pass --plants and/or --profiles")
			}
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			importer := seed.NewImporter(idb.NewPostgresPlantRepository(db), logger.Component("seed"))
			// Plants first: profiles reference them.
			if plantsPath != "" {
				n, err := importer.ImportPlants(cmd.Context(), plantsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d plant(s)\n", n)
			}
			if profilesPath != "" {
				n, err := importer.ImportProfiles(cmd.Context(), profilesPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d watering profile(s)\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plantsPath, "plants", "", "Plants file (.csv or .xlsx)")
	cmd.Flags().StringVar(&profilesPath, "profiles", "", "Watering profiles file (.csv or .xlsx)")
	return cmd
}
