package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"inboxtriage/internal/api"
	"inboxtriage/pkg/rbac"
	"inboxtriage/pkg/util"
)

func printState(cmd *cobra.Command, state api.StateResponse) error {
	if jsonOutput {
		return writeJSON(cmd, state)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  backend %s\n", enabledBadge(state.Enabled), state.BackendURL)
	return nil
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn automatic triage on",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		state, err := client.Enable(ctx)
		if err != nil {
			return err
		}
		return printState(cmd, state)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn automatic triage off",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		state, err := client.Disable(ctx)
		if err != nil {
			return err
		}
		return printState(cmd, state)
	},
}

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Show or change the classification backend url",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		state, err := client.State(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]string{"backend_url": state.BackendURL})
		}
		fmt.Fprintln(cmd.OutOrStdout(), state.BackendURL)
		return nil
	},
}

var backendSetCmd = &cobra.Command{
	Use:   "set <url>",
	Short: "Point the runners at another classification endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		state, err := client.SetBackend(ctx, args[0])
		if err != nil {
			return err
		}
		return printState(cmd, state)
	},
}

var backendClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Fall back to the default classification endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		state, err := client.SetBackend(ctx, "")
		if err != nil {
			return err
		}
		return printState(cmd, state)
	},
}

var resetCheckCmd = &cobra.Command{
	Use:   "reset-check",
	Short: "Run the stale-counter check now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		res, err := client.ResetCheck(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, res)
		}
		w := cmd.OutOrStdout()
		if res.Reset {
			fmt.Fprintln(w, success.Render("counters reset"))
		} else {
			fmt.Fprintln(w, dim.Render("counters are fresh, nothing to do"))
		}
		fmt.Fprintf(w, "processed %d  categorized %d  last reset %s\n",
			res.Stats.Processed, res.Stats.Categorized, res.Stats.LastReset.Format(time.RFC3339))
		return nil
	},
}

var (
	tokenSecret  string
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the protected endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := util.GenerateRoleJWT(tokenSubject, tokenRole, tokenSecret, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (env JWT_SECRET)")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Operator name recorded in control logs")
	tokenCmd.Flags().StringVar(&tokenRole, "role", rbac.RoleOperator, "Token role: operator or viewer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")

	backendCmd.AddCommand(backendSetCmd)
	backendCmd.AddCommand(backendClearCmd)

	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(backendCmd)
	rootCmd.AddCommand(resetCheckCmd)
	rootCmd.AddCommand(tokenCmd)
}
