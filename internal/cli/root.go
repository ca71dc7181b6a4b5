package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

var (
	cfgFile  string
	verbose  bool
	quiet    bool
	jsonLogs bool

	v   = newViper()
	cfg *Config
	log = logger.Default()
)

var rootCmd = &cobra.Command{
	Use:   "launchdeck",
	Short: "Classify, deploy and watch services on a deployment worker",
	Long: `Launchdeck decides where a project can be deployed, submits the
deployment to a worker over a persistent websocket session and follows its
pipeline steps and logs until it finishes.

Configuration is read from $HOME/.launchdeck.yaml or ./.launchdeck.yaml and
can be overridden with LAUNCHDECK_* environment variables, for example
LAUNCHDECK_WORKER_URL or LAUNCHDECK_STORE_DRIVER.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		loaded, err := LoadConfig(v)
		if err != nil {
			return err
		}
		cfg = loaded
		log = newLogger(cfg)
		if f := v.ConfigFileUsed(); f != "" {
			log.Debug("using config file", "path", f)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.launchdeck.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON")

	_ = v.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("json-logs"))
}

// initConfig reads the config file, if any. A missing default file is not
// an error; a missing --config file is.
func initConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".launchdeck")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func newLogger(c *Config) *slog.Logger {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	logger.Init(logger.Config{
		Level:   level,
		JSON:    c.Log.JSON,
		Verbose: verbose,
		Quiet:   quiet,
	})
	return logger.Default()
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return quiet
}
