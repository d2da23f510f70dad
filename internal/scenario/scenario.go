package scenario

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one parsed scenario file: a name, the accounts it uses,
// and an ordered step list.
type Scenario struct {
	Name     string   `yaml:"name"`
	Accounts []string `yaml:"accounts"`
	Steps    []Step   `yaml:"steps"`
}

// Step is a one-of record: exactly one action field is set per step.
// ExpectError marks a step whose action must fail; the failure message
// is recorded in the trace instead of aborting the run.
type Step struct {
	Programmable     *ProgrammableStep     `yaml:"programmable,omitempty"`
	ViewObject       *ViewObjectStep       `yaml:"view-object,omitempty"`
	TransferObject   *TransferObjectStep   `yaml:"transfer-object,omitempty"`
	StagePackage     *StagePackageStep     `yaml:"stage-package,omitempty"`
	Publish          *PublishStep          `yaml:"publish,omitempty"`
	SetAddress       *SetAddressStep       `yaml:"set-address,omitempty"`
	CreateCheckpoint *CreateCheckpointStep `yaml:"create-checkpoint,omitempty"`
	ViewCheckpoint   *struct{}             `yaml:"view-checkpoint,omitempty"`
	AdvanceClock     *AdvanceClockStep     `yaml:"advance-clock,omitempty"`
	AdvanceEpoch     *struct{}             `yaml:"advance-epoch,omitempty"`
	RequestFunds     *RequestFundsStep     `yaml:"request-funds,omitempty"`
	QueryEvents      *QueryEventsStep      `yaml:"query-events,omitempty"`
	DevInspect       *DevInspectStep       `yaml:"dev-inspect,omitempty"`

	ExpectError bool `yaml:"expect-error,omitempty"`
}

// ProgrammableStep executes a programmable transaction. Inputs are
// symbolic value literals; commands reference them by input index.
type ProgrammableStep struct {
	Sender    string        `yaml:"sender"`
	GasBudget uint64        `yaml:"gas-budget,omitempty"`
	GasPrice  uint64        `yaml:"gas-price,omitempty"`
	Inputs    []string      `yaml:"inputs"`
	Commands  []CommandSpec `yaml:"commands"`
}

// CommandSpec is one programmable command. Kind selects the variant;
// the remaining fields are argument indices into the step's inputs,
// negative values selecting prior command results (-1 is command 0's
// result and so on), and math.MinInt for the gas coin.
type CommandSpec struct {
	Kind string `yaml:"kind"`

	// transfer
	Objects   []int `yaml:"objects,omitempty"`
	Recipient *int  `yaml:"recipient,omitempty"`

	// split / merge
	Coin    *int  `yaml:"coin,omitempty"`
	Amounts []int `yaml:"amounts,omitempty"`
	Coins   []int `yaml:"coins,omitempty"`

	// publish
	Package string `yaml:"package,omitempty"`

	// make-vec / call
	Elems    []int  `yaml:"elems,omitempty"`
	Function string `yaml:"function,omitempty"`
	Args     []int  `yaml:"args,omitempty"`
}

// ViewObjectStep prints an object's state by handle.
type ViewObjectStep struct {
	Object  string `yaml:"object"`
	Version uint64 `yaml:"version,omitempty"`
}

// TransferObjectStep moves one owned object to a named recipient.
type TransferObjectStep struct {
	Sender    string `yaml:"sender"`
	Object    string `yaml:"object"`
	Recipient string `yaml:"recipient"`
	GasBudget uint64 `yaml:"gas-budget,omitempty"`
}

// StagePackageStep records a named package's module bytes without
// publishing them. Modules are hex strings.
type StagePackageStep struct {
	Name    string   `yaml:"name"`
	Modules []string `yaml:"modules"`
}

// PublishStep publishes a previously staged package.
type PublishStep struct {
	Sender    string `yaml:"sender"`
	Package   string `yaml:"package"`
	GasBudget uint64 `yaml:"gas-budget,omitempty"`
}

// SetAddressStep binds a name to a handle's address, usable thereafter
// in sender and recipient positions.
type SetAddressStep struct {
	Name   string `yaml:"name"`
	Object string `yaml:"object"`
}

type CreateCheckpointStep struct {
	// Count collapses several consecutive checkpoints into one step.
	Count uint64 `yaml:"count,omitempty"`
}

type AdvanceClockStep struct {
	Duration string `yaml:"duration"`
}

type RequestFundsStep struct {
	Recipient string `yaml:"recipient"`
	Amount    uint64 `yaml:"amount,omitempty"`
}

// QueryEventsStep lists events for a prior transaction, identified by
// its position among executed transactions (0-based).
type QueryEventsStep struct {
	Transaction int `yaml:"transaction"`
	Limit       int `yaml:"limit,omitempty"`
}

// DevInspectStep speculatively executes a programmable transaction
// without committing it.
type DevInspectStep struct {
	Sender   string        `yaml:"sender"`
	GasPrice *uint64       `yaml:"gas-price,omitempty"`
	Inputs   []string      `yaml:"inputs"`
	Commands []CommandSpec `yaml:"commands"`
}

// Load reads and strictly decodes a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode strictly decodes scenario YAML. Unknown fields are errors.
func Decode(r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("decode scenario: missing name")
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

func (s *Step) validate() error {
	n := 0
	for _, set := range []bool{
		s.Programmable != nil,
		s.ViewObject != nil,
		s.TransferObject != nil,
		s.StagePackage != nil,
		s.Publish != nil,
		s.SetAddress != nil,
		s.CreateCheckpoint != nil,
		s.ViewCheckpoint != nil,
		s.AdvanceClock != nil,
		s.AdvanceEpoch != nil,
		s.RequestFunds != nil,
		s.QueryEvents != nil,
		s.DevInspect != nil,
	} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("expected exactly one action, got %d", n)
	}
	return nil
}
