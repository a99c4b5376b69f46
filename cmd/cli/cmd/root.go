// Package cmd provides the ifctl CLI commands: a thin client over the
// gateway's HTTP surface for enqueueing jobs, checking status, inspecting
// queues, and minting download tokens from a terminal.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "ifctl",
	Short: "ifctl - IFC job-orchestration client",
	Long: `
  _  __          _   _
 (_)/ _| ___ ___| |_| |
 | | |_ / __/ __| __| |
 | |  _| (_| (__| |_| |
 |_|_|  \___\___|\__|_|

ifctl talks to the IFC job-orchestration gateway: enqueue conversion,
clash, QTO and patch jobs, poll their status, and manage download tokens.

Run 'ifctl help <command>' for details on any command.
`,
	Version: "1.0.0",
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ifctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("api", "http://localhost:8080", "gateway base URL")
	rootCmd.PersistentFlags().String("api-key", "", "gateway API key (X-API-Key header)")

	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api"))
	viper.BindPFlag("api.key", rootCmd.PersistentFlags().Lookup("api-key"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ifctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.ifctl")
	}

	viper.SetEnvPrefix("IFCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Println("Using config:", viper.ConfigFileUsed())
	}
}

// Color helpers
func green(s string) string  { return "\033[32m" + s + "\033[0m" }
func red(s string) string    { return "\033[31m" + s + "\033[0m" }
func yellow(s string) string { return "\033[33m" + s + "\033[0m" }
func cyan(s string) string   { return "\033[36m" + s + "\033[0m" }
func bold(s string) string   { return "\033[1m" + s + "\033[0m" }

func success(msg string) { fmt.Println(green("✓ ") + msg) }
func fail(msg string)    { fmt.Fprintln(os.Stderr, red("✗ ")+msg) }
func info(msg string)    { fmt.Println(cyan("ℹ ") + msg) }
func warn(msg string)    { fmt.Println(yellow("⚠ ") + msg) }
