package main

import (
	"github.com/forbearing/crudgate/config"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "crudgate",
	Short:   "Schema-introspecting relational CRUD gateway",
	Long:    "crudgate exposes a single action-dispatch HTTP endpoint that performs CRUD operations against any table reachable through its configured database connection.",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd, migrateCheckCmd, versionCmd)
}

func bindConfigFile() {
	if cfgFile != "" {
		config.SetConfigFile(cfgFile)
	}
}
