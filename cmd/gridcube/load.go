package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridcube/gridcube/pkg/config"
	"github.com/gridcube/gridcube/pkg/database"
)

var loadCmd = &cobra.Command{
	Use:   "load MODEL.yaml",
	Short: "Load a YAML model file and print a summary of dimensions and cubes",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		m, err := config.Load(args[0])
		if err != nil {
			return err
		}
		db := database.New("gridcube")
		status := config.Apply(db, m)
		fmt.Printf("dimensions: %v\n", db.Dimensions())
		fmt.Printf("cubes: %v\n", db.Cubes())
		if !status.OK() {
			return status
		}
		return nil
	},
}
