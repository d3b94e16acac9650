// Package main provides the Huulkit CLI entrypoint.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
	keysPath   string
	verbose    bool
	pretty     = true
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "huulkit",
		Short: "Refine, translate and check the weather from the terminal",
		Long: `Huulkit: a small writing helper backed by Gemini.

Usage modes:
  huulkit tui          Interactive helper, translator and weather sidebar
  huulkit serve        Local HTTP gateway for the desktop front end
  huulkit <command>    One-shot refine, translate, weather or keys commands

API keys live in ~/.huulkit/config.json. Use 'huulkit keys set' to change them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HUULKIT_CONFIG"), "Service configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&keysPath, "keys", "", "API key file (default ~/.huulkit/config.json)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty print output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log at the configured level instead of warnings only")

	rootCmd.AddGroup(
		&cobra.Group{ID: "text", Title: "Text:"},
		&cobra.Group{ID: "runtime", Title: "Runtime:"},
	)

	refine := refineCmd()
	refine.GroupID = "text"
	rootCmd.AddCommand(refine)

	translate := translateCmd()
	translate.GroupID = "text"
	rootCmd.AddCommand(translate)

	wx := weatherCmd()
	wx.GroupID = "runtime"
	rootCmd.AddCommand(wx)

	keys := keysCmd()
	keys.GroupID = "runtime"
	rootCmd.AddCommand(keys)

	serve := serveCmd()
	serve.GroupID = "runtime"
	rootCmd.AddCommand(serve)

	tui := tuiCmd()
	tui.GroupID = "runtime"
	rootCmd.AddCommand(tui)

	ctx, stop := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		exitOnError(err)
	}
}
