package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/frederictriquet/Jukebox/pkg/jukebox"
	"github.com/frederictriquet/Jukebox/pkg/logger"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "jukebox",
	Short: "Acoustic fingerprinting for DJ mix identification",
	Long: `Jukebox indexes a reference track library into a fingerprint store,
identifies tracks inside continuous mix recordings, and exports the result
as a standard cue sheet.

Typical workflow:
  jukebox index                 fingerprint the library
  jukebox analyze mix.mp3 -o mix.cue
  jukebox stats`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetLevel(logger.ParseLevel(logLevel))
		return bindFlags(cmd, viper.GetViper())
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default jukebox.yaml in ., $HOME/.jukebox, /etc/jukebox)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "",
		"fingerprint store path (default jukebox.sqlite3)")
	rootCmd.PersistentFlags().String("temp-dir", "",
		"scratch directory for audio conversion")

	viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("temp_dir", rootCmd.PersistentFlags().Lookup("temp-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig layers configuration: flags > env (JUKEBOX_*) > config file >
// defaults. A .env in the working directory is folded into the environment
// first.
func initConfig() {
	godotenv.Load()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".jukebox"))
		}
		viper.AddConfigPath("/etc/jukebox")
		viper.SetConfigName("jukebox")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("JUKEBOX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		logger.Debugf("using config file %s", viper.ConfigFileUsed())
	}
}

func setDefaults() {
	viper.SetDefault("db_path", "jukebox.sqlite3")
	viper.SetDefault("temp_dir", os.TempDir())
	viper.SetDefault("sample_rate", 11025)
	viper.SetDefault("workers", 8)
	viper.SetDefault("segment_seconds", 30)
	viper.SetDefault("overlap_seconds", 15)
	viper.SetDefault("min_confidence", 0.1)
	viper.SetDefault("library.jukebox_root", "library/jukebox")
	viper.SetDefault("library.curating_root", "library/curating")
}

// bindFlags back-fills unset cobra flags from viper so config file and env
// values reach commands that read flags directly.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		name := strings.ReplaceAll(f.Name, "-", "_")
		if !f.Changed && v.IsSet(name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(name))); err != nil {
				lastErr = err
			}
		}
	})
	return lastErr
}

// libraryRoot resolves the library directory for a mode name.
func libraryRoot(mode string) (string, error) {
	key := "library." + mode + "_root"
	root := viper.GetString(key)
	if root == "" {
		return "", fmt.Errorf("unknown library mode %q (no %s configured)", mode, key)
	}
	return root, nil
}

// newEngine builds the engine from the resolved configuration.
func newEngine() (*jukebox.Engine, error) {
	return jukebox.New(
		jukebox.WithDBPath(viper.GetString("db_path")),
		jukebox.WithTempDir(viper.GetString("temp_dir")),
		jukebox.WithSampleRate(viper.GetInt("sample_rate")),
		jukebox.WithWorkers(viper.GetInt("workers")),
		jukebox.WithSegment(viper.GetInt("segment_seconds"), viper.GetInt("overlap_seconds")),
	)
}
