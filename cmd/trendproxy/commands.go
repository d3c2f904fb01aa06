package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/trendproxy/internal/api"
	"github.com/kalambet/trendproxy/internal/config"
	"github.com/kalambet/trendproxy/internal/query"
)

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query <keywords>",
	Short: "Fetch interest over time for comma-separated keywords",
	Long: `Fetch interest over time for up to five comma-separated keywords.

By default the request goes to a running "trendproxy serve". With --direct
the query runs in-process against Google Trends.

Examples:
  trendproxy query coffee,tea
  trendproxy query "golang, rust" --json
  trendproxy query coffee --direct`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		direct, _ := cmd.Flags().GetBool("direct")

		var (
			series []query.KeywordSeries
			err    error
		)
		if direct {
			series, err = queryDirect(cmd.Context(), args[0])
		} else {
			var client *apiClient
			client, err = newAPIClient()
			if err != nil {
				return err
			}
			series, err = queryServer(cmd.Context(), client, args[0])
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(series)
		}
		renderSeries(cmd.OutOrStdout(), series)
		return nil
	},
}

func init() {
	queryCmd.Flags().Bool("json", false, "print the raw JSON response")
	queryCmd.Flags().Bool("direct", false, "query Google Trends in-process instead of via the server")
}

func queryServer(ctx context.Context, client *apiClient, keywords string) ([]query.KeywordSeries, error) {
	resp, err := client.get(ctx, "/trends", url.Values{"keywords": {keywords}})
	if err != nil {
		return nil, err
	}
	var series []query.KeywordSeries
	if err := decodeJSON(resp, &series); err != nil {
		return nil, err
	}
	return series, nil
}

func queryDirect(ctx context.Context, keywords string) ([]query.KeywordSeries, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.SlogLevel())

	series, err := newService(cfg, nil).Query(ctx, keywords, true)
	var ve *query.ValidationError
	if errors.As(err, &ve) {
		return nil, fmt.Errorf("%s: %s", ve.Cause, ve.Message())
	}
	return series, err
}

// renderSeries prints one block per keyword with its daily values.
func renderSeries(w io.Writer, series []query.KeywordSeries) {
	for i, s := range series {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, colorize(colorBold, s.Keyword))
		if s.Error != "" {
			printMissing(w, "status", s.Error)
			continue
		}
		if len(s.Data) == 0 {
			printMissing(w, "status", "no complete data points")
			continue
		}
		for _, dp := range s.Data {
			printStatus(w, dp.Date, "%3d %s", dp.Value, bar(dp.Value))
		}
	}
}

func bar(v int) string {
	n := v / 5
	if n < 0 {
		n = 0
	}
	return strings.Repeat("#", n)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the trends tool over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		// stdout carries the MCP protocol; logs stay on stderr.
		setupLogging(cfg.SlogLevel())

		mcpSrv := api.NewMCPServer(newService(cfg, nil), version)
		stdio := server.NewStdioServer(mcpSrv)
		if err := stdio.Listen(cmd.Context(), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the config file.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
