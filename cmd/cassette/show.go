package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/akupila/vcr/cassette"
	"github.com/akupila/vcr/storage"
)

var showFlags struct {
	bodies bool
}

var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show the interactions in a cassette",
	Long: `Show one line per recorded interaction: index, method, URL, status and
response body size. Binary bodies are marked with "bin".

Examples:
  # Summary
  cassette show github/user

  # Include request and response bodies
  cassette show github/user --bodies`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(cmd, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showFlags.bodies, "bodies", false, "print request and response bodies")
}

func runShow(cmd *cobra.Command, w io.Writer, name string) error {
	interactions, err := storage.NewFileStorage(dir).Load(cmd.Context(), name)
	if err != nil {
		return err
	}
	if len(interactions) == 0 {
		return fmt.Errorf("cassette %q not found in %s", name, dir)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, in := range interactions {
		kind := "text"
		if in.Response.Body.Binary {
			kind = "bin"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%d bytes\n",
			i, in.Request.Method, in.Request.URL, in.Response.StatusCode, kind, in.Response.Body.Len())
		if showFlags.bodies {
			if err := tw.Flush(); err != nil {
				return err
			}
			printBody(w, ">", in.Request.Body)
			printBody(w, "<", in.Response.Body)
		}
	}
	return tw.Flush()
}

func printBody(w io.Writer, prefix string, b cassette.Body) {
	switch {
	case b.Len() == 0:
		return
	case b.Binary:
		fmt.Fprintf(w, "%s <binary %s, %d bytes>\n", prefix, b.ContentType, b.Len())
	default:
		fmt.Fprintf(w, "%s %s\n", prefix, b.Data)
	}
}
