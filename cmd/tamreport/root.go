package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tamreport/internal/app"
	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
)

// Exit codes
const (
	exitAccurate     = 0
	exitUsage        = 1
	exitInconsistent = 2
	exitInaccurate   = 3
	exitSource       = 10
	exitAuthority    = 11
	exitIO           = 20
)

type rootFlags struct {
	configPath    string
	customer      string
	refresh       bool
	validationDir string
	noBanner      bool
}

// statusError ends a successful run whose report is not accurate
type statusError struct {
	status models.ValidationStatus
}

func (e *statusError) Error() string {
	return fmt.Sprintf("report status %s", e.status)
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "tamreport",
		Short: "Reconcile TAM RFE/Bug reports against JIRA",
		Long: "tamreport enumerates a customer's support cases, enriches their JIRA references\n" +
			"from the authority, validates the result and keeps Markdown reports in sync.",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default: $TAMREPORT_CONFIG or config/tamreport.toml)")
	pf.StringVarP(&flags.customer, "customer", "c", "", "Customer key from config, or an account number")
	pf.BoolVar(&flags.refresh, "refresh", false, "Ignore cached case snapshots")
	pf.StringVar(&flags.validationDir, "validation-dir", "", "Directory for validation reports (default: <data>/validation)")
	pf.BoolVar(&flags.noBanner, "no-banner", false, "Do not print the run banner")

	root.AddCommand(newGenerateCmd(flags))
	root.AddCommand(newReconcileCmd(flags))
	root.AddCommand(newValidateCmd(flags))
	root.AddCommand(newWarmCmd(flags))
	root.AddCommand(newVersionCmd())
	root.Version = common.GetVersion()
	return root
}

// execute runs the CLI and returns the process exit code
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	return handleError(err, stderr)
}

// handleError prints the halt record for classified failures and maps the
// outcome to an exit code.
func handleError(err error, stderr io.Writer) int {
	if err == nil {
		return exitAccurate
	}

	var se *statusError
	if errors.As(err, &se) {
		return statusExitCode(se.status)
	}

	var ce *common.Error
	if !errors.As(err, &ce) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	data, jerr := json.Marshal(common.RecordOf(err))
	if jerr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	} else {
		fmt.Fprintln(stderr, string(data))
	}
	return errorExitCode(err)
}

func statusExitCode(status models.ValidationStatus) int {
	switch status {
	case models.StatusAccurate:
		return exitAccurate
	case models.StatusInconsistent:
		return exitInconsistent
	default:
		return exitInaccurate
	}
}

func errorExitCode(err error) int {
	switch common.KindOf(err) {
	case common.KindSourceUnavailable, common.KindSourceMalformed, common.KindSourceAuth:
		return exitSource
	case common.KindAuthorityTransient, common.KindAuthorityDenied, common.KindAuthorityNotFound,
		common.KindAuthorityMalformed, common.KindCircuitOpen:
		return exitAuthority
	case common.KindReportWriteError, common.KindReportParseError:
		return exitIO
	default:
		return exitUsage
	}
}

// statusResult turns a run's validation status into the command result
func statusResult(status models.ValidationStatus) error {
	if status == models.StatusAccurate {
		return nil
	}
	return &statusError{status: status}
}

// openApp loads config and wires the App for a command that runs against a customer
func openApp(cmd *cobra.Command, flags *rootFlags) (*app.App, error) {
	if flags.customer == "" {
		return nil, fmt.Errorf("--customer is required")
	}
	a, err := app.NewApp(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := a.SetValidationDir(flags.validationDir); err != nil {
		a.Close()
		return nil, err
	}
	if !flags.noBanner {
		common.PrintBanner(cmd.ErrOrStderr(), a.Config, cmd.Name(), flags.customer, a.Logger)
	}
	return a, nil
}
