package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/minted-protocol/canton-bridge/internal/ledger"
	"github.com/minted-protocol/canton-bridge/internal/replenish"
)

type replenishOptions struct {
	LedgerURL string
	Token     string
	UserID    string
	Operator  string
	PackageID string
	Target    string
	Chunk     string
	MaxTx     int
	DryRun    bool
	Timeout   time.Duration
}

// NewReplenishCommand creates the replenish command.
func NewReplenishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &replenishOptions{}

	cmd := &cobra.Command{
		Use:   "replenish",
		Short: "Top the operator inventory back up to a floor",
		Long: `Drive chunked mint operations until the operator's spendable CIP-56
inventory covers the target. Chunk failures are recorded, not fatal;
partial replenishment is still useful.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplenish(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.LedgerURL, "ledger-url", "http://localhost:7575", "participant JSON API endpoint")
	cmd.Flags().StringVar(&opts.Token, "token", "", "ledger API bearer token")
	cmd.Flags().StringVar(&opts.UserID, "user-id", "administrator", "ledger API user id")
	cmd.Flags().StringVar(&opts.Operator, "operator", "", "operator party identifier")
	cmd.Flags().StringVar(&opts.PackageID, "package-id", "", "bridge Daml package id")
	cmd.Flags().StringVar(&opts.Target, "target", "", "inventory floor to reach")
	cmd.Flags().StringVar(&opts.Chunk, "chunk", "100", "amount minted per transaction")
	cmd.Flags().IntVar(&opts.MaxTx, "max-tx", 10, "maximum mint transactions per run")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report the plan without submitting")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")

	return cmd
}

func runReplenish(rootOpts *RootOptions, opts *replenishOptions, cmd *cobra.Command) error {
	logger := newLogger(rootOpts.Verbose, cmd.ErrOrStderr())

	target, err := decimal.NewFromString(opts.Target)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", opts.Target, err)
	}
	chunk, err := decimal.NewFromString(opts.Chunk)
	if err != nil {
		return fmt.Errorf("invalid chunk %q: %w", opts.Chunk, err)
	}

	client := ledger.NewHTTPClient(opts.LedgerURL, opts.Token, opts.UserID, opts.Timeout)
	replenisher := replenish.New(client, opts.PackageID, opts.Operator, opts.MaxTx, logger)

	out := cmd.OutOrStdout()

	if opts.DryRun {
		current, err := replenisher.Inventory(cmd.Context())
		if err != nil {
			return err
		}
		deficit := target.Sub(current)
		if deficit.IsNegative() {
			deficit = decimal.Zero
		}
		plan := map[string]string{
			"current": current.String(),
			"target":  target.String(),
			"deficit": deficit.String(),
			"chunk":   chunk.String(),
		}
		if rootOpts.Format == "json" {
			return writeJSON(out, plan)
		}
		fmt.Fprintf(out, "current %s, target %s, deficit %s (chunk %s); dry run, nothing submitted\n",
			current, target, deficit, chunk)
		return nil
	}

	summary, err := replenisher.Run(cmd.Context(), target, chunk)
	if err != nil {
		return err
	}

	if rootOpts.Format == "json" {
		if err := writeJSON(out, summaryView(summary)); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "status %s: %d succeeded, %d failed, minted %s (inventory %s -> %s)\n",
			summary.FinalStatus, summary.Succeeded, summary.Failed, summary.Minted, summary.Starting, summary.Final)
		for _, e := range summary.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
	}

	if summary.FinalStatus == replenish.StatusFailed {
		return fmt.Errorf("replenishment failed")
	}
	return nil
}

type replenishView struct {
	Starting     string   `json:"starting"`
	Target       string   `json:"target"`
	Succeeded    int      `json:"succeeded"`
	Failed       int      `json:"failed"`
	Minted       string   `json:"minted"`
	Final        string   `json:"final"`
	FinalStatus  string   `json:"finalStatus"`
	StoppedEarly bool     `json:"stoppedEarly"`
	Errors       []string `json:"errors,omitempty"`
}

func summaryView(s replenish.Summary) replenishView {
	return replenishView{
		Starting:     s.Starting.String(),
		Target:       s.Target.String(),
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		Minted:       s.Minted.String(),
		Final:        s.Final.String(),
		FinalStatus:  string(s.FinalStatus),
		StoppedEarly: s.StoppedEarly,
		Errors:       s.Errors,
	}
}
