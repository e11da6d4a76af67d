package main

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tasksync/storage"
)

var initStorageCmd = &cobra.Command{
	Use:   "init-storage",
	Short: "Create the tasks table and the command queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StorageConnectionString == "" {
			return errors.New("missing STORAGE_CONNECTION_STRING")
		}
		log.Info("storage init starting")
		if err := storage.Provision(cmd.Context(), cfg.StorageConnectionString, cfg.TasksTable, cfg.CommandQueue); err != nil {
			return err
		}
		log.WithFields(log.Fields{"table": cfg.TasksTable, "queue": cfg.CommandQueue}).Info("storage init complete")
		return nil
	},
}
