package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/akupila/vcr/storage"
)

var listFlags struct {
	sqlite string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cassettes",
	Long: `List the names of all cassettes in the cassette directory, or in a SQLite
database when --sqlite is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listFlags.sqlite, "sqlite", "", "list cassettes in this SQLite database instead")
}

func runList(cmd *cobra.Command, w io.Writer) error {
	var (
		names []string
		err   error
	)
	if listFlags.sqlite != "" {
		db, openErr := storage.NewSQLiteStorage(listFlags.sqlite)
		if openErr != nil {
			return fmt.Errorf("open database: %w", openErr)
		}
		defer db.Close()
		names, err = db.List(cmd.Context())
	} else {
		names, err = storage.NewFileStorage(dir).List()
	}
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}
