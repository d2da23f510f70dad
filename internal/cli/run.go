package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/chainscript/internal/adapter"
	"github.com/roach88/chainscript/internal/ledger"
	"github.com/roach88/chainscript/internal/scenario"
	"github.com/roach88/chainscript/internal/sim"
	"github.com/roach88/chainscript/internal/validator"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Backend string
	Config  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against a backend",
		Long: `Run a scenario file step by step against the selected backend.

The scenario's accounts are funded at genesis and every step executes in
order, writing a trace to stdout. A failing step (without expect-error)
stops the run.

Example:
  chainscript run ./scenarios/transfer.yaml
  chainscript run --backend validator ./scenarios/transfer.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "", "execution backend (sim|validator)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE config file")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	mode := cfg.Backend
	if opts.Backend != "" {
		mode = opts.Backend
	}

	sc, err := scenario.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	log.Info("scenario loaded", "name", sc.Name, "steps", len(sc.Steps))

	backend, cleanup, err := buildBackend(mode, sc, cfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start backend", err)
	}
	defer cleanup()

	driver := scenario.NewDriver(sc, backend, log)
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		// Trace goes to stderr so the JSON summary stays parseable.
		out = cmd.ErrOrStderr()
	}
	if err := driver.Run(out); err != nil {
		if adapter.IsUnsupported(err) {
			return WrapExitError(ExitFailure, "unsupported capability", err)
		}
		return WrapExitError(ExitFailure, "scenario failed", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return formatter.Success(fmt.Sprintf("scenario %s passed (%d steps, backend %s)", sc.Name, len(sc.Steps), mode))
}

// buildBackend constructs the selected backend for the scenario's genesis.
func buildBackend(mode string, sc *scenario.Scenario, cfg *Config, log *slog.Logger) (adapter.Backend, func(), error) {
	genesis := genesisFor(sc, cfg)
	switch mode {
	case "sim":
		b, err := sim.New(genesis, log)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if cerr := b.Close(); cerr != nil {
				log.Error("error closing backend", "error", cerr)
			}
		}, nil
	case "validator":
		b, err := validator.New(genesis, log)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if cerr := b.Close(); cerr != nil {
				log.Error("error closing backend", "error", cerr)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q: must be sim or validator", mode)
}

func genesisFor(sc *scenario.Scenario, cfg *Config) ledger.Genesis {
	g := scenario.GenesisFor(sc)
	for _, name := range cfg.ExtraAccounts {
		g.Accounts = append(g.Accounts, scenario.DeriveAddress(name))
	}
	if cfg.InitialFunding > 0 {
		g.InitialFunding = cfg.InitialFunding
	}
	if cfg.ProtocolVersion > 0 {
		g.ProtocolVersion = cfg.ProtocolVersion
	}
	g.StartTimestampMs = cfg.StartTimestampMs
	return g
}
