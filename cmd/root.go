package cmd

import (
	"fmt"
	"os"

	"photo-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "photo-sync",
	Short: "Photo Sync Service",
	Long: `Photo Sync reconciles a multi-tenant photo gallery's object storage
with its database and rebuilds derived media (thumbnails, EXIF, tone analysis)
through an isolated worker pool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format with debug level gives readable ISO8601 output for a
		// CLI invocation.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
