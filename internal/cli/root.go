// Package cli handles the command-line interface logic
// using the Cobra library.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/BartekS5/bigsitemap/pkg/logger"
)

// RootOptions are the flags shared by every command.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	LogFile    string
}

func NewRootCmd() *cobra.Command {
	opts := &RootOptions{}

	rootCmd := &cobra.Command{
		Use:   "bigsitemap",
		Short: "bigsitemap - sitemap generator for large databases",
		Long: `bigsitemap writes sitemaps.org sitemaps and a sitemap index for tables and
collections of any size. Records are read in batches by primary key, spread
over files of at most 50,000 urls, and later runs can resume from the last
key written instead of starting over.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logger.INFO
			if opts.Verbose {
				level = logger.DEBUG
			}
			return logger.InitLogger(opts.LogFile, level)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "sitemap.toml", "Path to the settings file (.toml or .json)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log every batch")
	rootCmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "Also append logs to this file")

	rootCmd.AddCommand(
		NewGenerateCmd(opts),
		NewCleanCmd(opts),
		NewIndexCmd(opts),
		NewPingCmd(opts),
	)

	return rootCmd
}
