package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"inboxtriage/internal/api"
	"inboxtriage/internal/ctlclient"
)

var (
	byCategory bool
	window     time.Duration
)

type statusOutput struct {
	api.StateResponse
	Breakdown *ctlclient.CategoryBreakdown `json:"by_category,omitempty"`
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enabled flag, counters and classifier backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		state, err := client.State(ctx)
		if err != nil {
			return err
		}

		out := statusOutput{StateResponse: state}
		if byCategory {
			b, err := client.CategoryCounts(ctx, window)
			var apiErr *ctlclient.APIError
			switch {
			case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
				// 未启用审计日志
			case err != nil:
				return err
			default:
				out.Breakdown = &b
			}
		}

		if jsonOutput {
			return writeJSON(cmd, out)
		}

		w := cmd.OutOrStdout()
		printStatus(w, state.Enabled, state.Stats, state.BackendURL, time.Now())
		if out.Breakdown != nil {
			printBreakdown(w, *out.Breakdown)
		} else if byCategory {
			fmt.Fprintln(w, dim.Render("\n  category breakdown unavailable: audit log disabled"))
		}
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Show the category to label mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		v, err := client.Categories(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, v)
		}
		printVocabulary(cmd.OutOrStdout(), v)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&byCategory, "by-category", false, "Include per-category counts from the audit log")
	statusCmd.Flags().DurationVar(&window, "since", 0, "Window for --by-category (default: server side, 30 days)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(categoriesCmd)
}
