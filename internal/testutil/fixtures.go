// Package testutil provides deterministic fixtures for backend and
// scenario tests.
//
// Everything here is derived from fixed names and seeds, so the same test
// produces byte-identical traces on every run. That is what makes golden
// snapshot comparison possible.
package testutil

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chainscript/internal/adapter"
	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/ledger"
	"github.com/roach88/chainscript/internal/scenario"
	"github.com/roach88/chainscript/internal/sim"
	"github.com/roach88/chainscript/internal/validator"
)

// Funding is the genesis coin value for test accounts.
const Funding = 100_000_000

// Logger returns a quiet logger for tests; verbose output belongs in the
// trace, not the log.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Genesis builds a genesis funding the named accounts, with addresses
// derived the same way the scenario driver derives them.
func Genesis(accounts ...string) ledger.Genesis {
	addrs := make([]chain.Address, len(accounts))
	for i, name := range accounts {
		addrs[i] = scenario.DeriveAddress(name)
	}
	return ledger.Genesis{
		Accounts:        addrs,
		InitialFunding:  Funding,
		ProtocolVersion: 1,
	}
}

// Account returns the deterministic address for a named test account.
func Account(name string) chain.Address {
	return scenario.DeriveAddress(name)
}

// NewSim starts a simulator backend funding the named accounts and closes
// it when the test ends.
func NewSim(t *testing.T, accounts ...string) *sim.Backend {
	t.Helper()
	b, err := sim.New(Genesis(accounts...), Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// NewValidator starts a validator-with-fullnode backend funding the named
// accounts and closes it when the test ends.
func NewValidator(t *testing.T, accounts ...string) *validator.Backend {
	t.Helper()
	b, err := validator.New(Genesis(accounts...), Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// RunScenario decodes scenario YAML, runs it against the backend, and
// returns the trace. The scenario must succeed.
func RunScenario(t *testing.T, backend adapter.Backend, src string) string {
	t.Helper()
	sc, err := scenario.Decode(strings.NewReader(src))
	require.NoError(t, err)
	var trace strings.Builder
	require.NoError(t, scenario.NewDriver(sc, backend, Logger()).Run(&trace))
	return trace.String()
}

// RunScenarioErr decodes scenario YAML, runs it, and returns the trace so
// far along with the run error, which must be non-nil.
func RunScenarioErr(t *testing.T, backend adapter.Backend, src string) (string, error) {
	t.Helper()
	sc, err := scenario.Decode(strings.NewReader(src))
	require.NoError(t, err)
	var trace strings.Builder
	runErr := scenario.NewDriver(sc, backend, Logger()).Run(&trace)
	require.Error(t, runErr)
	return trace.String(), runErr
}
