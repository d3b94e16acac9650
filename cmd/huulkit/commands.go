package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huulkit/huulkit/config"
	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/keystore"
	"github.com/huulkit/huulkit/refine"
	"github.com/huulkit/huulkit/server"
	"github.com/huulkit/huulkit/tui"
	"github.com/huulkit/huulkit/weather"
)

func refineCmd() *cobra.Command {
	var opts refine.Options

	cmd := &cobra.Command{
		Use:   "refine [text]",
		Short: "Shorten, clarify, soften or polish a text",
		Long: `Refine a text with Gemini. Reads stdin when no text is given.

With no option flags the text is shortened.`,
		Example: `  huulkit refine --kinder "Send me the report now."
  pbpaste | huulkit refine --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if !opts.Any() {
				opts = refine.DefaultOptions()
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.text.Refine(cmd.Context(), text, opts)
			if err != nil {
				return err
			}
			printer{w: cmd.OutOrStdout(), pretty: pretty}.refined(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Shorten, "shorten", false, "Make it shorter")
	cmd.Flags().BoolVar(&opts.Clarify, "clarify", false, "Make it clearer")
	cmd.Flags().BoolVar(&opts.MakeKinder, "kinder", false, "Make it kinder")
	cmd.Flags().BoolVar(&opts.Polish, "polish", false, "Polish grammar, wording and flow")
	cmd.Flags().BoolVar(&opts.CombineAll, "all", false, "Apply every refinement")
	return cmd
}

func translateCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate between English, Swedish and Vietnamese",
		Long: `Translate a text with Gemini. Reads stdin when no text is given.

Without --to the text is translated into every other supported language.`,
		Example: `  huulkit translate --from sv --to en "Hej, hur mår du?"
  huulkit translate --from English "Good morning"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := refine.ParseLanguage(from)
			if err != nil {
				return err
			}
			var dst refine.Language
			if to != "" {
				if dst, err = refine.ParseLanguage(to); err != nil {
					return err
				}
			}

			text, err := inputText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			p := printer{w: cmd.OutOrStdout(), pretty: pretty}
			if dst != "" {
				out, err := a.text.Translate(cmd.Context(), text, src, dst)
				if err != nil {
					return err
				}
				p.translation(dst, out)
				return nil
			}

			results, err := a.text.TranslateAll(cmd.Context(), text, src)
			if err != nil {
				return err
			}
			p.translations(results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", refine.English.String(), "Source language (name or code)")
	cmd.Flags().StringVarP(&to, "to", "t", "", "Target language (default: all others)")
	return cmd
}

func weatherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weather [city]",
		Short: "Show current weather for London, Stockholm and Hanoi",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			var infos []weather.Info
			if len(args) == 1 {
				city, err := weather.ParseCity(args[0])
				if err != nil {
					return err
				}
				info, err := a.weather.Info(cmd.Context(), city)
				if err != nil {
					return err
				}
				infos = []weather.Info{info}
			} else if infos, err = a.weather.ForAll(cmd.Context()); err != nil {
				return err
			}

			printer{w: cmd.OutOrStdout(), pretty: pretty}.weather(infos)
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Show or change the saved API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved keys, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openKeystore(zap.NewNop())
			if err != nil {
				return err
			}
			printer{w: cmd.OutOrStdout(), pretty: pretty}.keys(store.Load(), store.Path())
			return nil
		},
	})

	var gemini, wx string
	set := &cobra.Command{
		Use:     "set",
		Short:   "Save one or both keys",
		Example: `  huulkit keys set --gemini AIza... --weather 0123abcd`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			geminiSet, wxSet := cmd.Flags().Changed("gemini"), cmd.Flags().Changed("weather")
			if !geminiSet && !wxSet {
				return fmt.Errorf("nothing to save: pass --gemini and/or --weather")
			}

			store, err := openKeystore(zap.NewNop())
			if err != nil {
				return err
			}
			if geminiSet {
				if err := store.UpdateGeminiAPIKey(gemini); err != nil {
					return err
				}
			}
			if wxSet {
				if err := store.UpdateWeatherAPIKey(wx); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Saved")+" "+store.Path())
			return nil
		},
	}
	set.Flags().StringVar(&gemini, "gemini", "", "Gemini API key (empty clears it)")
	set.Flags().StringVar(&wx, "weather", "", "weatherapi.com API key (empty clears it)")
	cmd.AddCommand(set)

	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP gateway",
		Long: `Run the HTTP gateway the desktop front end talks to.

With --config the YAML file is watched and log level, rate limit and queue
size changes apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, level, err := cfg.Logging.NewLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			errors.SetLogger(logger)

			var watcher config.Watcher
			switch {
			case cmd.Flags().Changed("port"):
				override := *cfg
				override.Server.Port = port
				if err := override.Validate(); err != nil {
					return err
				}
				watcher = config.NewStaticWatcher(&override)
			case configPath != "":
				cw, err := config.NewConfigWatcher(configPath, logger.Named("config"))
				if err != nil {
					return err
				}
				watcher = cw
			default:
				watcher = config.NewStaticWatcher(cfg)
			}
			defer watcher.Close()

			opts := []server.Option{server.WithLogLevel(level)}
			if keysPath != "" {
				store, err := keystore.New(keysPath, logger.Named("keystore"))
				if err != nil {
					return err
				}
				opts = append(opts, server.WithKeyStore(store))
			}

			srv, err := server.NewServer(watcher, logger, opts...)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port, overrides the config file and disables hot reload")
	return cmd
}

func tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive helper, translator and weather sidebar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			return tui.Run(cmd.Context(), tui.Services{
				Refiner:    a.text,
				Translator: a.text,
				Weather:    a.weather,
				Keys:       a.keys,
			})
		},
	}
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
