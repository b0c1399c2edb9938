package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clipnetic/clipnetic/internal/config"
	"github.com/clipnetic/clipnetic/internal/platform/logger"
)

// app is shared by the subcommands; PersistentPreRunE fills it in.
type app struct {
	cfg config.Config
	log zerolog.Logger
}

func Main() {
	if err := NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRoot() *cobra.Command {
	a := &app{}
	var (
		configFile string
		envFiles   []string
		logLevel   string
	)

	root := &cobra.Command{
		Use:           "clipnetic",
		Short:         "Turn long talking-head videos into vertical highlight clips",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts := []config.Option{config.WithEnvFiles(envFiles...)}
			if configFile != "" {
				opts = append(opts, config.WithConfigFile(configFile))
			}
			cfg, err := config.Load(opts...)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			a.cfg = cfg
			// logs go to stderr so stdout stays machine readable
			a.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./config.yml or ./config/config.yml)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files to load, best effort")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")

	root.AddCommand(
		newServeCmd(a),
		newProcessCmd(a),
		newSelectCmd(a),
		newPlanCmd(a),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
