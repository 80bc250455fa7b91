package cli

import (
	"github.com/spf13/cobra"
)

type GenerateOptions struct {
	Partial bool
	DryRun  bool
	Ping    bool
	Clean   bool
}

func NewGenerateCmd(root *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sitemaps and the sitemap index",
		RunE: func(c *cobra.Command, args []string) error {
			return runGenerate(c.Context(), root, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Partial, "partial", "p", false, "Resume keyed sources from the last key written")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Count and read every source without writing files")
	cmd.Flags().BoolVar(&opts.Ping, "ping", false, "Notify search engines after generating")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "Remove existing sitemaps before generating")

	return cmd
}

func NewCleanCmd(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove all sitemaps and the index from the output directory",
		RunE: func(c *cobra.Command, args []string) error {
			return runClean(root)
		},
	}
}

func NewIndexCmd(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rewrite the sitemap index from the files on disk",
		RunE: func(c *cobra.Command, args []string) error {
			return runIndex(root)
		},
	}
}

func NewPingCmd(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Notify search engines about the sitemap index",
		RunE: func(c *cobra.Command, args []string) error {
			return runPing(c.Context(), root)
		},
	}
}
