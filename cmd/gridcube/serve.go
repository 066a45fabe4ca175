package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gridcube/gridcube/internal/api"
	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/pkg/config"
	"github.com/gridcube/gridcube/pkg/database"
	"github.com/gridcube/gridcube/pkg/persist"
)

var log = logging.Log()

var (
	modelFlag   *string
	addrFlag    *string
	persistFlag *string
	watchFlag   *bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load a model and serve the REST API",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db := database.New("gridcube")

		if *modelFlag != "" {
			m, err := config.Load(*modelFlag)
			if err != nil {
				return err
			}
			if status := config.Apply(db, m); !status.OK() {
				return status
			}
		}

		if *persistFlag != "" {
			store, err := persist.Open(persist.Config{Path: *persistFlag})
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.LoadSnapshot(db); err != nil {
				return err
			}
			if err := store.ReplayJournal(db); err != nil {
				return err
			}
			db.SetJournal(store)
		}

		if *watchFlag && *modelFlag != "" {
			stop := make(chan struct{})
			go func() {
				if err := config.Watch(*modelFlag, db, stop); err != nil {
					log.Error(err, "model watch stopped")
				}
			}()
		}

		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		api.New(db, r)
		log.Info("serving", "address", *addrFlag)
		fmt.Printf("gridcube listening on %s\n", *addrFlag)
		return r.Run(*addrFlag)
	},
}

func init() {
	modelFlag = serveCmd.Flags().String("model", "", "YAML model file to load at startup")
	addrFlag = serveCmd.Flags().String("http", ":8080", "listen address")
	persistFlag = serveCmd.Flags().String("data", "", "badger persistence directory (empty disables persistence)")
	watchFlag = serveCmd.Flags().Bool("watch", false, "hot-reload the model file on change")
}
