// Package commands implements the venusdemo command tree.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/venus"

	// Backends register themselves by name.
	_ "github.com/gogpu/venus/backend/software"
	_ "github.com/gogpu/venus/backend/wgpu"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "venusdemo",
	Short: "Run the venus command submission loop",
	Long: `venusdemo records, commits and presents frames through venus.

Every frame goes through the canonical sequence: check out a command
buffer, open a render encoder, set viewport and scissor, clear the
swap chain target, end encoding, commit and present. Frames are paced
by fence values instead of draining the queue.`,
	Version:       venus.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger(viper.GetString("log_level"))
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./venus.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default silent)")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("venus")
	}

	// VENUS_IN_FLIGHT overrides in_flight, and so on.
	viper.SetEnvPrefix("VENUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// initLogger routes venus logging to stderr at the given level. An empty
// level keeps venus silent.
func initLogger(level string) error {
	if level == "" {
		venus.SetLogger(nil)
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	venus.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}
