package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"memosy/internal/downloader"

	"github.com/spf13/cobra"
)

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Install or self-update the yt-dlp binary once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tool, err := newTool(cfg)
			if err != nil {
				return err
			}
			installed, err := tool.EnsureInstalled(ctx)
			if err != nil {
				return err
			}
			if !installed {
				if err := tool.Update(ctx); err != nil {
					return err
				}
			}
			v, err := tool.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("yt-dlp %s (%s)\n", v, tool.Binary())
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a single URL with the configured profile",
		Long:  "Runs the same download the relay would for a message link and prints the path of the resulting file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			if outputDir == "" {
				outputDir = cfg.Downloader.OutputDir
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tool, err := newTool(cfg)
			if err != nil {
				return err
			}
			if err := ensureBinary(ctx, cfg, tool); err != nil {
				return err
			}

			job, err := downloader.NewFetcher(tool, outputDir, logger).Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(job.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for the job folder (default: downloader.outputDir)")
	return cmd
}
