package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docseg/internal/config"
)

// cli holds state shared by every subcommand after flag parsing.
type cli struct {
	cfgFile      string
	outputFormat string
	verbose      bool

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "docseg",
		Short: "Chapter-aware document segmentation",
		Long: `docseg recovers the chapter structure of a document and cuts it into
bounded segments ready for embedding.

Structure comes from the format itself where possible:
  - PDF bookmarks
  - DOCX heading styles
  - Markdown and HTML headings
and from statistical title detection for plain text or when a file carries
no usable structure.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(
		&c.cfgFile, "config", "", "config file (default: ./docseg.yaml or ~/.docseg/docseg.yaml)",
	)
	root.PersistentFlags().StringVarP(
		&c.outputFormat, "output", "o", string(outputYAML), "output format: yaml or json",
	)
	root.PersistentFlags().BoolVarP(
		&c.verbose, "verbose", "v", false, "log structure detection decisions to stderr",
	)

	root.AddCommand(newSegmentCmd(c))
	root.AddCommand(newOutlineCmd(c))
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	if _, err := parseOutputFormat(c.outputFormat); err != nil {
		return err
	}

	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (c *cli) format() outputFormat {
	f, _ := parseOutputFormat(c.outputFormat)
	return f
}

func (c *cli) write(cmd *cobra.Command, data any) error {
	if err := writeOutput(cmd.OutOrStdout(), c.format(), data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
