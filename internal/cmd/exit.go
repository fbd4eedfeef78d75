package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// osExit is swapped in tests.
var osExit = os.Exit

// exitReport is the resolved form of a fatal CLI error.
type exitReport struct {
	name     string
	desc     string
	category string
	known    bool
	code     int
	envelope *errors.ErrorEnvelope
	cause    error
}

func newExitReport(exitCode foundry.ExitCode, err error) exitReport {
	report := exitReport{code: int(exitCode), cause: err}
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		report.name = info.Name
		report.desc = info.Description
		report.category = info.Category
		report.known = true
		report.code = info.Code
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		report.envelope = envelope
		if original, ok := envelope.Original.(error); ok && original != nil {
			report.cause = original
		}
	}
	return report
}

func (r exitReport) fields() []zap.Field {
	fields := []zap.Field{zap.Int("exit_code", r.code)}
	if r.known {
		fields = append(fields,
			zap.String("exit_name", r.name),
			zap.String("exit_category", r.category))
	}
	if env := r.envelope; env != nil {
		fields = append(fields,
			zap.String("error_code", env.Code),
			zap.String("error_message", env.Message),
			zap.String("correlation_id", env.CorrelationID))
		if env.Context != nil {
			fields = append(fields, zap.Any("error_context", env.Context))
		}
	}
	if r.cause != nil {
		fields = append(fields, zap.Error(r.cause))
	}
	return fields
}

func (r exitReport) write(w io.Writer, msg string) {
	switch {
	case r.envelope != nil:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s", msg, r.envelope.Code, r.envelope.Message)
		if r.envelope.CorrelationID != "" {
			fmt.Fprintf(w, " (correlation: %s)", r.envelope.CorrelationID)
		}
		fmt.Fprintln(w)
		if r.cause != nil && r.cause != error(r.envelope) {
			fmt.Fprintf(w, "Underlying error: %v\n", r.cause)
		}
	case r.cause != nil:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, r.cause)
	default:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	}
	if r.known {
		fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", r.code, r.name, r.desc)
	} else {
		fmt.Fprintf(w, "Exit Code: %d\n", r.code)
	}
}

// ExitWithCode logs err with foundry exit code metadata and exits. A nil
// logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	report := newExitReport(exitCode, err)
	if logger == nil {
		report.write(os.Stderr, msg)
	} else {
		logger.Error(msg, report.fields()...)
	}
	osExit(report.code)
}

// ExitWithCodeStderr is ExitWithCode for failures before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}
