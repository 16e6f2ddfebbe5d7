package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/vk/selftraingo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("selftrain", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
selftrain - semi-supervised self-training for image classification.

Usage:
  selftrain [options] [EXPERIMENT_PATH]

Arguments:
  EXPERIMENT_PATH
    Path to a single .hcl experiment file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	expFlag := flagSet.String("experiment-path", "", "Path to the experiment file or directory.")
	eFlag := flagSet.String("e", "", "Path to the experiment file or directory (shorthand).")
	nameFlag := flagSet.String("experiment", "", "Name of the experiment to run when several are defined.")
	dataRootFlag := flagSet.String("data-root", "", "Override the dataset root directory from the experiment file.")
	methodFlag := flagSet.String("method", "", "Override the method from the experiment file: 'pseudo_label' or 'noisy_student'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", runtime.NumCPU(), "Number of concurrent gradient workers.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *expFlag != "" {
		path = *expFlag
	} else if *eFlag != "" {
		path = *eFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Experiment path determined.", "path", path)

	if path == "" {
		slog.Debug("No experiment path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *methodFlag != "" && *methodFlag != "pseudo_label" && *methodFlag != "noisy_student" {
		return nil, false, &ExitError{Code: 2, Message: "invalid method: must be 'pseudo_label' or 'noisy_student'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ExperimentPath: path,
		ExperimentName: *nameFlag,
		DataRoot:       *dataRootFlag,
		Method:         *methodFlag,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
		Workers:        *workersFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
