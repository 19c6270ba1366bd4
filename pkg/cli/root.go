// Package cli implements the cubesql command line: model validation and
// import, query compilation and the HTTP server.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"cubesql/internal/config"
	"cubesql/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// exitError carries a process exit code without an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// runtime holds what the persistent pre-run resolved for subcommands.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	output, _ := rootCmd.PersistentFlags().GetString("output")
	if output == "json" {
		_ = printJSON(stdout, map[string]any{"error": err.Error(), "kind": errorKind(err)})
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

func errorKind(err error) string {
	var (
		nf  *domain.NotFoundError
		ve  *domain.ValidationError
		sve *domain.SchemaValidationError
		re  *domain.ResolutionError
		ce  *domain.CompilationError
		co  *domain.ConflictError
	)
	switch {
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &ve), errors.As(err, &sve):
		return "validation"
	case errors.As(err, &re):
		return "resolution"
	case errors.As(err, &ce):
		return "compilation"
	case errors.As(err, &co):
		return "conflict"
	default:
		return "internal"
	}
}

func newRootCmd() *cobra.Command {
	var (
		output   string
		envFile  string
		modelDB  string
		logLevel string
	)
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:           "cubesql",
		Short:         "Semantic model to SQL compiler",
		Long:          "Loads OLAP semantic models, compiles cube queries to dialect-specific SQL and serves them over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.ModelDBPath = modelDB
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			rt.cfg = cfg
			rt.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			for _, w := range cfg.Warnings {
				rt.logger.Warn(w)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional .env file")
	rootCmd.PersistentFlags().StringVar(&modelDB, "db", "", "Model store path (overrides CUBESQL_MODEL_DB)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newPlanCmd(rt))
	rootCmd.AddCommand(newApplyCmd(rt))
	rootCmd.AddCommand(newModelsCmd(rt))
	rootCmd.AddCommand(newEntityCmd(rt))
	rootCmd.AddCommand(newCompileCmd(rt))
	rootCmd.AddCommand(newRunCmd(rt))
	rootCmd.AddCommand(newPivotCmd(rt))
	rootCmd.AddCommand(newMembersCmd(rt))
	rootCmd.AddCommand(newServeCmd(rt))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
