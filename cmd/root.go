// Package cmd is the notetaking command line.
//
// Settings are read, highest priority first, from flags, NOTETAKING_*
// environment variables (NOTETAKING_EDITOR_AUTOSAVE_DELAY=750ms), the file
// named by --config, and built-in defaults.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	var cfgFile string

	root := &cobra.Command{
		Use:   "notetaking",
		Short: "Rich-text notes with per-note undo history and autosave",
		Long: `notetaking serves a notes API and a WebSocket editing endpoint.

Each connected editor gets a session that keeps an undo/redo history per
note and saves edits automatically once typing pauses.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(newServeCommand(v, &cfgFile))

	return root
}
