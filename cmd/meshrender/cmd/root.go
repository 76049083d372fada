package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/meshrender/internal/layout"
	"github.com/psantana5/meshrender/internal/logging"
)

// Supervisor option keys. Each is settable by flag, config file or a
// MESHRENDER_ environment variable.
const (
	keyRoot         = "root"
	keyNode         = "node"
	keyServerScript = "server_script"
	keyLogLevel     = "log_level"
	keyLogFormat    = "log_format"
	keyMetricsAddr  = "metrics_addr"
)

var cfgFile string

// exitCode is what the process exits with when the command itself succeeded.
var exitCode int

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "meshrender",
	Short: "Run MeshCentral on a platform with a single port and TLS at the edge",
	Long: `meshrender prepares a MeshCentral install for a hosting platform that
assigns the listening port and public hostname through the environment and
terminates TLS at its edge, then runs the server as a supervised child process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exitCode
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.meshrender/config.yaml)")
	flags.String("root", "", "install root containing node_modules (default is the working directory)")
	flags.String("node", "node", "node binary used to run the server")
	flags.String("server-script", "", "server entry point (default is <root>/node_modules/meshcentral)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address (disabled when empty)")

	viper.BindPFlag(keyRoot, flags.Lookup("root"))
	viper.BindPFlag(keyNode, flags.Lookup("node"))
	viper.BindPFlag(keyServerScript, flags.Lookup("server-script"))
	viper.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	viper.BindPFlag(keyLogFormat, flags.Lookup("log-format"))
	viper.BindPFlag(keyMetricsAddr, flags.Lookup("metrics-addr"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".meshrender"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MESHRENDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", cfgFile, err)
		}
	}
}

// options are the supervisor's own settings, as opposed to the platform
// settings the environment resolver reads.
type options struct {
	Root         string
	Node         string
	ServerScript string
	LogLevel     string
	LogFormat    string
	MetricsAddr  string
}

func loadOptions() options {
	return options{
		Root:         viper.GetString(keyRoot),
		Node:         viper.GetString(keyNode),
		ServerScript: viper.GetString(keyServerScript),
		LogLevel:     viper.GetString(keyLogLevel),
		LogFormat:    viper.GetString(keyLogFormat),
		MetricsAddr:  viper.GetString(keyMetricsAddr),
	}
}

func (o options) logger() *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(o.LogLevel), strings.EqualFold(o.LogFormat, "json"))
}

func (o options) paths() layout.Paths {
	return layout.New(o.Root)
}

func (o options) node() string {
	if o.Node == "" {
		return "node"
	}
	return o.Node
}

// script returns the server entry point, defaulting to the installed package.
func (o options) script(p layout.Paths) string {
	if o.ServerScript != "" {
		return o.ServerScript
	}
	return filepath.Join(p.Root, "node_modules", "meshcentral")
}
