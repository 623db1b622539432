package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/minted-protocol/canton-bridge/internal/doctor"
	"github.com/minted-protocol/canton-bridge/internal/ledger"
	"github.com/minted-protocol/canton-bridge/internal/replenish"
)

type doctorOptions struct {
	LedgerURL     string
	Token         string
	UserID        string
	Operator      string
	PackageID     string
	Floor         string
	SourceDirs    []string
	StaleLiterals []string
	Timeout       time.Duration
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &doctorOptions{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run read-only environment and reachability checks",
		Long: `Run independent health checks: environment variable shape, participant
reachability, operator inventory against the configured floor, and a
stale-literal drift scan across source trees. Exit code 0 iff no check
failed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.LedgerURL, "ledger-url", "http://localhost:7575", "participant JSON API endpoint")
	cmd.Flags().StringVar(&opts.Token, "token", "", "ledger API bearer token")
	cmd.Flags().StringVar(&opts.UserID, "user-id", "administrator", "ledger API user id")
	cmd.Flags().StringVar(&opts.Operator, "operator", "", "operator party identifier")
	cmd.Flags().StringVar(&opts.PackageID, "package-id", "", "bridge Daml package id")
	cmd.Flags().StringVar(&opts.Floor, "floor", "1000", "inventory floor")
	cmd.Flags().StringArrayVar(&opts.SourceDirs, "source-dir", nil, "source tree to scan for stale literals (repeatable)")
	cmd.Flags().StringArrayVar(&opts.StaleLiterals, "stale-literal", nil, "literal that must no longer appear in source (repeatable)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 15*time.Second, "per-check timeout")

	return cmd
}

func runDoctor(rootOpts *RootOptions, opts *doctorOptions, cmd *cobra.Command) error {
	logger := newLogger(rootOpts.Verbose, cmd.ErrOrStderr())

	floor, err := decimal.NewFromString(opts.Floor)
	if err != nil {
		return fmt.Errorf("invalid floor %q: %w", opts.Floor, err)
	}

	client := ledger.NewHTTPClient(opts.LedgerURL, opts.Token, opts.UserID, opts.Timeout)
	replenisher := replenish.New(client, opts.PackageID, opts.Operator, 1, logger)

	doc := doctor.New(logger,
		doctor.EnvCheck{
			OperatorParty: opts.Operator,
			LedgerBaseURL: opts.LedgerURL,
			PackageID:     opts.PackageID,
		},
		doctor.ReachabilityCheck{Ledger: client},
		doctor.InventoryCheck{Inventory: replenisher.Inventory, Floor: floor},
		doctor.DriftCheck{Roots: opts.SourceDirs, StaleLiterals: opts.StaleLiterals},
	)

	report := doc.Run(cmd.Context())

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		for _, r := range report.Results {
			marker := "✓"
			switch r.Status {
			case doctor.StatusFail:
				marker = "✗"
			case doctor.StatusWarn:
				marker = "!"
			}
			if r.Detail != "" {
				fmt.Fprintf(out, "%s %s (%s)\n", marker, r.Name, r.Detail)
			} else {
				fmt.Fprintf(out, "%s %s\n", marker, r.Name)
			}
		}
		fmt.Fprintf(out, "\n%d pass, %d warn, %d fail\n", report.Pass, report.Warn, report.Fail)
	}

	if !report.Healthy {
		return fmt.Errorf("%d check(s) failed", report.Fail)
	}
	return nil
}
