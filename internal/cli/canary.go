package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/minted-protocol/canton-bridge/internal/canary"
)

type canaryOptions struct {
	BaseURL         string
	Party           string
	Amount          string
	Execute         bool
	ForceProbe      bool
	FallbackEnabled bool
	Timeout         time.Duration
}

// NewCanaryCommand creates the canary command.
func NewCanaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &canaryOptions{}

	cmd := &cobra.Command{
		Use:   "canary",
		Short: "Run the end-to-end conversion canary",
		Long: `Run the scripted conversion scenario against a live bridge endpoint:
preflight, an optional real conversion, post-conversion checks and the
dependent redemption. Exit code 0 on pass or an expected policy block,
1 on any hard failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanary(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "http://localhost:8080", "bridge API endpoint")
	cmd.Flags().StringVar(&opts.Party, "party", "", "target party identifier")
	cmd.Flags().StringVar(&opts.Amount, "amount", "1", "amount to probe through convert and redeem")
	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "submit real conversions (default dry-run stops after preflight)")
	cmd.Flags().BoolVar(&opts.ForceProbe, "force-probe", false, "probe conversion even when the deployment is expected to block it")
	cmd.Flags().BoolVar(&opts.FallbackEnabled, "fallback-enabled", false, "mirror of the deployment's fallback flag")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")

	return cmd
}

func runCanary(rootOpts *RootOptions, opts *canaryOptions, cmd *cobra.Command) error {
	logger := newLogger(rootOpts.Verbose, cmd.ErrOrStderr())

	client := canary.NewClient(opts.BaseURL, opts.Timeout)
	runner := canary.NewRunner(client, canary.Options{
		Party:           opts.Party,
		Amount:          opts.Amount,
		Execute:         opts.Execute,
		ForceProbe:      opts.ForceProbe,
		FallbackEnabled: opts.FallbackEnabled,
	}, logger)

	report := runner.Run(cmd.Context())

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		for _, a := range report.Assertions {
			marker := "✓"
			switch a.Result {
			case canary.Fail:
				marker = "✗"
			case canary.Skip:
				marker = "-"
			case canary.PolicyBlocked:
				marker = "⊘"
			}
			if a.Detail != "" {
				fmt.Fprintf(out, "%s %s (%s)\n", marker, a.Name, a.Detail)
			} else {
				fmt.Fprintf(out, "%s %s\n", marker, a.Name)
			}
		}
		fmt.Fprintf(out, "\nverdict: %s\n", report.Verdict)
	}

	if report.ExitCode() != 0 {
		return fmt.Errorf("canary verdict: %s", report.Verdict)
	}
	return nil
}
