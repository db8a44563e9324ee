package cmd

import (
	"context"
	"fmt"
	"os"

	"photo-sync/core/workerpool"
	"photo-sync/feature/mediabuild"

	"github.com/spf13/cobra"
)

// workerCmd is the entrypoint of a pooled worker process. The host spawns it
// with stdin/stdout wired to the job protocol; it is not meant to be run by
// hand.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	Short:  "Run as a media extraction worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := workerpool.NewServer()
		srv.Handle(workerpool.TypeProcessPhoto, mediabuild.ProcessPhotoHandler())

		if err := srv.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
			// Stderr reaches the host's log verbatim.
			fmt.Fprintln(os.Stderr, "worker exited:", err)
			return err
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(workerCmd)
}
