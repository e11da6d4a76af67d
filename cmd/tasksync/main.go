// Command tasksync serves per-user task boards backed by a remote document
// store and offers a few maintenance commands.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tasksync/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "tasksync",
	Short:         "Realtime task boards over a remote document store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if cfg.Debug {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, listCmd, initStorageCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("tasksync failed")
		os.Exit(1)
	}
}
