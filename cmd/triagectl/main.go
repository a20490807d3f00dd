package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"inboxtriage/internal/ctlclient"
	pkgconfig "inboxtriage/pkg/config"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	apiURL     string
	token      string
	jsonOutput bool
	timeout    time.Duration
	client     *ctlclient.Client
)

var rootCmd = &cobra.Command{
	Use:           "triagectl",
	Short:         "triagectl - operate the inbox triage pipeline",
	Long:          "Inspect and control the triage pipeline through the coordinator's control API.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "version", "token", "help":
			return nil
		}
		client = ctlclient.New(apiURL, token)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "triagectl version %s\n", Version)
	},
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", pkgconfig.GetEnv("TRIAGE_API", "http://localhost:8090"), "Control API base url")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TRIAGE_TOKEN"), "Operator bearer token (env TRIAGE_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
