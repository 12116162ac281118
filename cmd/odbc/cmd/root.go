package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odb-lang/odb-compiler/internal/codegen"
	"github.com/odb-lang/odb-compiler/internal/config"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/driver"
	"github.com/odb-lang/odb-compiler/internal/logging"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitInternal = 2
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "odbc",
	Short: "DarkBASIC compiler",
	Long: `odbc compiles DarkBASIC Professional programs to native Windows
executables that run on the original engine plugins.

Commands are resolved against keyword files (.ini/.txt) or the string
tables of the plugin DLLs themselves.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errReported) {
		return exitFailure
	}
	var ie *codegen.InternalError
	if errors.As(err, &ie) {
		fmt.Fprintf(os.Stderr, "internal compiler error: %v\n", ie)
		return exitInternal
	}
	printError(err)
	return exitFailure
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./odbc.toml or ./odbc.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	rootCmd.AddCommand(keywordsCmd, parseCmd, buildCmd)
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

// errReported marks failures whose diagnostics were already printed.
var errReported = errors.New("diagnostics reported")

// setup loads the configuration and returns a driver for one command.
func setup() (*driver.Driver, error) {
	var (
		cfg  *config.Config
		path = cfgFile
		err  error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, path, err = config.Discover(".")
	}
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(level)
	slog.SetDefault(logger)
	if path != "" {
		logger.Debug("using config", slog.String("path", path))
	}
	return driver.New(cfg, logger), nil
}

// report prints diagnostics carried by err and replaces it with
// errReported, so they are not printed twice.
func report(d *driver.Driver, err error) error {
	if err == nil {
		return nil
	}
	if d.Report(diag.NewFormatter(os.Stderr), err) {
		return errReported
	}
	return err
}
