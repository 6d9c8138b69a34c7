package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/feedbackd/internal/api"
	"github.com/kalambet/feedbackd/internal/config"
	"github.com/kalambet/feedbackd/internal/sentiment"
	"github.com/kalambet/feedbackd/internal/seed"
	"github.com/kalambet/feedbackd/internal/storage"
)

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review <text>",
	Short: "Submit a customer review and print the reply",
	Long: `Submit a customer review. The server classifies it, drafts a reply and stores it.

Examples:
  feedbackd review "The tonkotsu was amazing, will be back!"
  feedbackd review Service was slow tonight`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return submitReview(cmd.Context(), client, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func submitReview(ctx context.Context, client *apiClient, text string, out io.Writer) error {
	resp, err := client.post(ctx, "/reviews", api.ReviewRequest{Text: text})
	if err != nil {
		return err
	}
	elapsed := resp.Header.Get("X-Elapsed")

	var result sentiment.Response
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}

	printSuccess("Saved review #%d", result.ID)
	printStatus("Sentiment", "%s (%s)", result.Sentiment, result.Source)
	if elapsed != "" {
		printStatus("Elapsed", "%ss", elapsed)
	}
	fmt.Fprintln(out, result.Reply)
	return nil
}

// --- trend ---

var trendCmd = &cobra.Command{
	Use:   "trend <prompt>",
	Short: "Render a sentiment trend chart",
	Long: `Render a sentiment trend chart for a natural-language date range.

Examples:
  feedbackd trend "last 7 days"
  feedbackd trend "June 1 to June 15" --chart bar --out june.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chart, _ := cmd.Flags().GetString("chart")
		out, _ := cmd.Flags().GetString("out")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return fetchTrend(cmd.Context(), client, strings.Join(args, " "), chart, out, cmd.OutOrStdout())
	},
}

func init() {
	trendCmd.Flags().String("chart", "auto", "chart kind: auto, bar or line")
	trendCmd.Flags().String("out", "trend.png", "file to write the PNG chart to")
}

func fetchTrend(ctx context.Context, client *apiClient, prompt, chart, out string, w io.Writer) error {
	q := url.Values{}
	q.Set("q", prompt)
	q.Set("chart", chart)

	resp, err := client.get(ctx, "/trends?"+q.Encode())
	if err != nil {
		return err
	}
	elapsed := resp.Header.Get("X-Elapsed")

	var result api.TrendResponse
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}

	img, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		return fmt.Errorf("decoding chart image: %w", err)
	}
	if err := os.WriteFile(out, img, 0o644); err != nil {
		return fmt.Errorf("writing chart: %w", err)
	}

	printSuccess("Wrote %s chart to %s", result.Chart, out)
	printStatus("Range", "%s", result.Label)
	printStatus("Title", "%s", result.Title)
	printStatus("Totals", "%s", formatCounts(result.Totals))
	if elapsed != "" {
		printStatus("Elapsed", "%ss", elapsed)
	}

	if len(result.Rows) == 0 {
		printWarning("No reviews in the selected range")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// formatCounts renders per-label counts in column order.
func formatCounts(counts map[storage.Sentiment]int) string {
	parts := make([]string, len(storage.Sentiments))
	for i, label := range storage.Sentiments {
		parts[i] = fmt.Sprintf("%d %s", counts[label], label)
	}
	return strings.Join(parts, ", ")
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load synthetic reviews into the local database",
	Long: `Load synthetic reviews directly into the local database, for demos and testing.
The same --seed always produces the same reviews relative to today.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		seedVal, _ := cmd.Flags().GetInt64("seed")
		if days <= 0 {
			return fmt.Errorf("--days must be positive")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		n, err := seed.Load(cmd.Context(), store, days, seedVal, time.Now().UTC())
		if err != nil {
			return err
		}

		printSuccess("Inserted %d synthetic reviews over %d days", n, days)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("days", seed.DefaultDays, "number of days to generate, ending today")
	seedCmd.Flags().Int64("seed", seed.DefaultSeed, "random seed")
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

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(tw, "  %s\t%s\t(%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return tw.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
