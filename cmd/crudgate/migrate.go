package main

import (
	"context"
	"fmt"

	"github.com/forbearing/crudgate/config"
	"github.com/forbearing/crudgate/dialect"
	"github.com/forbearing/crudgate/schema"
	"github.com/spf13/cobra"
)

var migrateCheckCmd = &cobra.Command{
	Use:   "migrate-check",
	Short: "Connect to the configured database and print the introspected schema",
	Long:  "migrate-check never writes to the database. It connects, lists every base table and column the configured dialect can see, and reports anything that looks unreachable (no primary key, zero columns).",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindConfigFile()
		if err := config.Init(); err != nil {
			return err
		}

		db, dialt, err := dialect.Connect(config.App)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err == nil {
			defer sqlDB.Close()
		}

		inspect := schema.New(dialt, db)
		ctx := context.Background()
		tables, err := inspect.ListTables(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("dialect: %s\n", dialt.Name())
		fmt.Printf("tables: %d\n", len(tables))
		for _, t := range tables {
			ts, err := inspect.Table(ctx, t)
			if err != nil {
				fmt.Printf("  %s: ERROR %v\n", t, err)
				continue
			}
			warn := ""
			if ts.PrimaryKey == "" {
				warn = " (no primary key, writes will be rejected)"
			}
			if len(ts.Columns) == 0 {
				warn = " (no columns visible)"
			}
			fmt.Printf("  %s: %d columns%s\n", t, len(ts.Columns), warn)
		}
		return nil
	},
}
