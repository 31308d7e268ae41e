package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/akupila/vcr/cassette"
	"github.com/akupila/vcr/storage"
)

var convertFlags struct {
	sqlite  string
	reverse bool
}

var convertCmd = &cobra.Command{
	Use:   "convert NAME",
	Short: "Copy a cassette between the YAML directory and SQLite",
	Long: `Copy a cassette from the cassette directory into a SQLite database. With
--reverse the cassette is copied from the database into the directory.

The destination cassette is replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertFlags.sqlite, "sqlite", "", "SQLite database path (required)")
	convertCmd.Flags().BoolVar(&convertFlags.reverse, "reverse", false, "copy from SQLite to the cassette directory")
	convertCmd.MarkFlagRequired("sqlite") // nolint: errcheck
}

func runConvert(cmd *cobra.Command, w io.Writer, name string) error {
	db, err := storage.NewSQLiteStorage(convertFlags.sqlite)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var src, dst cassette.Storage = storage.NewFileStorage(dir), db
	from, to := dir, convertFlags.sqlite
	if convertFlags.reverse {
		src, dst = dst, src
		from, to = to, from
	}

	interactions, err := src.Load(cmd.Context(), name)
	if err != nil {
		return err
	}
	if len(interactions) == 0 {
		return fmt.Errorf("cassette %q not found in %s", name, from)
	}
	if err := dst.Save(cmd.Context(), name, interactions); err != nil {
		return err
	}

	fmt.Fprintf(w, "Copied %d interactions of %s from %s to %s\n", len(interactions), name, from, to)
	return nil
}
