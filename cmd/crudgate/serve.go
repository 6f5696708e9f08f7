package main

import (
	"github.com/forbearing/crudgate/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindConfigFile()
		if err := bootstrap.Bootstrap(); err != nil {
			return err
		}
		return bootstrap.Run()
	},
}
