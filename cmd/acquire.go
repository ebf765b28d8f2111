package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mohammad-safakhou/policylens/config"
	"github.com/mohammad-safakhou/policylens/internal/policies"
	"github.com/mohammad-safakhou/policylens/internal/runtime"
	"github.com/mohammad-safakhou/policylens/models"
	"github.com/mohammad-safakhou/policylens/tools/web_fetch"
	fetchmodels "github.com/mohammad-safakhou/policylens/tools/web_fetch/models"
	"github.com/spf13/cobra"
)

// acquireCMD fetches one document from the command line. With --dry-run it
// only renders and extracts content; otherwise it stores a policy version.
func acquireCMD(cfgPath *string) *cobra.Command {
	var typ string
	var timeoutMs int
	var waitFor string
	var engine string
	var dryRun bool

	var acquire = &cobra.Command{
		Use:   "acquire <link>",
		Short: "Acquire a privacy policy or terms document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if engine != "" {
				cfg.Fetch.Engine = engine
			}
			ctx, cancel := runtime.SignalContext(cmd.Context(), "acquire")
			defer cancel()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			if dryRun {
				fetcher, err := web_fetch.NewWebFetcher(cfg.Fetch)
				if err != nil {
					return err
				}
				res, err := fetcher.Exec(ctx, args[0], fetchmodels.Options{
					Timeout: time.Duration(timeoutMs) * time.Millisecond,
					WaitFor: waitFor,
				})
				if err != nil {
					return err
				}
				res.HTML = ""
				return enc.Encode(res)
			}

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			p, err := a.policies.CreateFromLink(ctx, policies.CreateParams{
				Link:      args[0],
				Type:      models.PolicyType(typ),
				TimeoutMs: timeoutMs,
				WaitFor:   waitFor,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "stored %s policy %s for %s (version %s)\n", p.Type, p.ID, p.Hostname, p.Version)
			return enc.Encode(p)
		},
	}
	acquire.Flags().StringVar(&typ, "type", string(models.PolicyTypePrivacy), "privacy or terms")
	acquire.Flags().IntVar(&timeoutMs, "timeout", 0, "navigation timeout in milliseconds (0 = default, max 30000)")
	acquire.Flags().StringVar(&waitFor, "wait-for", "", "CSS selector to wait for (best effort)")
	acquire.Flags().StringVar(&engine, "engine", "", "browser engine: chromedp or rod (overrides fetch.engine)")
	acquire.Flags().BoolVar(&dryRun, "dry-run", false, "render and extract only, do not store")

	return acquire
}
