package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chainscript/internal/scenario"
	"github.com/roach88/chainscript/internal/script"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Check parses scenario files, validates their step structure, and parses
every symbolic value literal, without binding a backend or executing
anything.

Example:
  chainscript check ./scenarios/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkScenarios(opts, args, cmd)
		},
	}

	return cmd
}

func checkScenarios(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	failed := 0
	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			failed++
			_ = formatter.Error(ErrCodeBadScenario, fmt.Sprintf("%s: %v", path, err), nil)
			continue
		}
		if err := checkLiterals(sc); err != nil {
			failed++
			_ = formatter.Error(ErrCodeBadScenario, fmt.Sprintf("%s: %v", path, err), nil)
			continue
		}
		formatter.VerboseLog("%s: ok (%d steps)", path, len(sc.Steps))
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed validation", failed, len(paths)))
	}
	return formatter.Success(fmt.Sprintf("%d scenario(s) ok", len(paths)))
}

// checkLiterals parses every symbolic value literal and object handle in
// the scenario, surfacing parse errors with their step position.
func checkLiterals(sc *scenario.Scenario) error {
	for i, step := range sc.Steps {
		var inputs []string
		switch {
		case step.Programmable != nil:
			inputs = step.Programmable.Inputs
		case step.DevInspect != nil:
			inputs = step.DevInspect.Inputs
		case step.ViewObject != nil:
			if _, err := script.ParseHandle(step.ViewObject.Object); err != nil {
				return fmt.Errorf("step %d: object: %w", i+1, err)
			}
		case step.TransferObject != nil:
			if _, err := script.ParseHandle(step.TransferObject.Object); err != nil {
				return fmt.Errorf("step %d: object: %w", i+1, err)
			}
		case step.SetAddress != nil:
			if _, err := script.ParseHandle(step.SetAddress.Object); err != nil {
				return fmt.Errorf("step %d: object: %w", i+1, err)
			}
		}
		for j, lit := range inputs {
			if _, err := script.ParseLiteral(lit); err != nil {
				return fmt.Errorf("step %d input %d: %w", i+1, j, err)
			}
		}
	}
	return nil
}
