package scenario

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/chainscript/internal/adapter"
	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/ledger"
	"github.com/roach88/chainscript/internal/script"
	"github.com/roach88/chainscript/internal/txbuilder"
)

const (
	defaultGasBudget = 5_000_000
	defaultGasPrice  = 1

	defaultFaucetAmount = 100_000_000

	accountDomain = "chainscript/account"
)

// DeriveAddress maps an account name to a deterministic address, so the
// same scenario produces the same addresses on every backend and run.
func DeriveAddress(name string) chain.Address {
	d := chain.ComputeDigest(accountDomain, []byte(name))
	addr, _ := chain.AddressFromBytes(d.Bytes())
	return addr
}

// GenesisFor builds the genesis funding the scenario's declared accounts.
func GenesisFor(sc *Scenario) ledger.Genesis {
	accounts := make([]chain.Address, 0, len(sc.Accounts))
	for _, name := range sc.Accounts {
		accounts = append(accounts, DeriveAddress(name))
	}
	return ledger.Genesis{
		Accounts:       accounts,
		InitialFunding: defaultFaucetAmount,
	}
}

// Driver runs one scenario against one bound backend, writing a
// deterministic textual trace as it goes.
type Driver struct {
	sc      *Scenario
	backend adapter.Backend
	state   *State
	log     *slog.Logger

	// runID tags the run; derived from the scenario name so traces stay
	// reproducible.
	runID uuid.UUID

	// digests indexes committed transactions in execution order, for
	// query-events steps.
	digests []chain.Digest
}

// NewDriver binds a scenario to a backend and seeds its account book.
func NewDriver(sc *Scenario, backend adapter.Backend, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	st := NewState(backend)
	for _, name := range sc.Accounts {
		st.BindAccount(name, DeriveAddress(name))
	}
	return &Driver{
		sc:      sc,
		backend: backend,
		state:   st,
		log:     log,
		runID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("chainscript/"+sc.Name)),
	}
}

// State exposes the driver's scenario state, chiefly for tests.
func (d *Driver) State() *State {
	return d.state
}

// Run executes every step in order, writing the trace to w. A step that
// fails without expect-error aborts the run; a step that succeeds despite
// expect-error does too.
func (d *Driver) Run(w io.Writer) error {
	fmt.Fprintf(w, "scenario %s run %s\n", d.sc.Name, d.runID)
	for i, step := range d.sc.Steps {
		d.log.Debug("running step", "scenario", d.sc.Name, "step", i+1)
		fmt.Fprintf(w, "\nstep %d: %s\n", i+1, stepName(&step))
		err := d.runStep(w, &step)
		switch {
		case err != nil && step.ExpectError:
			fmt.Fprintf(w, "error (expected): %s\n", err)
		case err != nil:
			return fmt.Errorf("step %d: %w", i+1, err)
		case step.ExpectError:
			return fmt.Errorf("step %d: expected an error, step succeeded", i+1)
		}
	}
	return nil
}

func stepName(s *Step) string {
	switch {
	case s.Programmable != nil:
		return "programmable"
	case s.ViewObject != nil:
		return "view-object"
	case s.TransferObject != nil:
		return "transfer-object"
	case s.StagePackage != nil:
		return "stage-package"
	case s.Publish != nil:
		return "publish"
	case s.SetAddress != nil:
		return "set-address"
	case s.CreateCheckpoint != nil:
		return "create-checkpoint"
	case s.ViewCheckpoint != nil:
		return "view-checkpoint"
	case s.AdvanceClock != nil:
		return "advance-clock"
	case s.AdvanceEpoch != nil:
		return "advance-epoch"
	case s.RequestFunds != nil:
		return "request-funds"
	case s.QueryEvents != nil:
		return "query-events"
	case s.DevInspect != nil:
		return "dev-inspect"
	}
	return "unknown"
}

func (d *Driver) runStep(w io.Writer, s *Step) error {
	switch {
	case s.Programmable != nil:
		return d.runProgrammable(w, s.Programmable)
	case s.ViewObject != nil:
		return d.runViewObject(w, s.ViewObject)
	case s.TransferObject != nil:
		return d.runTransferObject(w, s.TransferObject)
	case s.StagePackage != nil:
		return d.runStagePackage(w, s.StagePackage)
	case s.Publish != nil:
		return d.runPublish(w, s.Publish)
	case s.SetAddress != nil:
		return d.runSetAddress(w, s.SetAddress)
	case s.CreateCheckpoint != nil:
		return d.runCreateCheckpoint(w, s.CreateCheckpoint)
	case s.ViewCheckpoint != nil:
		return d.runViewCheckpoint(w)
	case s.AdvanceClock != nil:
		return d.runAdvanceClock(w, s.AdvanceClock)
	case s.AdvanceEpoch != nil:
		return d.runAdvanceEpoch(w)
	case s.RequestFunds != nil:
		return d.runRequestFunds(w, s.RequestFunds)
	case s.QueryEvents != nil:
		return d.runQueryEvents(w, s.QueryEvents)
	case s.DevInspect != nil:
		return d.runDevInspect(w, s.DevInspect)
	}
	return fmt.Errorf("empty step")
}

// resolveAccount returns the address bound to name, deriving and binding
// it on first use so scenarios can introduce recipients on the fly.
func (d *Driver) resolveAccount(name string) chain.Address {
	if addr, ok := d.state.Account(name); ok {
		return addr
	}
	addr := DeriveAddress(name)
	d.state.BindAccount(name, addr)
	return addr
}

// buildKind lowers literal inputs and command specs into a programmable
// transaction kind.
func (d *Driver) buildKind(inputs []string, cmds []CommandSpec) (chain.TransactionKind, error) {
	b := txbuilder.New()
	args := make([]chain.Argument, len(inputs))
	for i, lit := range inputs {
		v, err := script.ParseLiteral(lit)
		if err != nil {
			return chain.TransactionKind{}, fmt.Errorf("input %d: %w", i, err)
		}
		args[i], err = script.ToArgument(v, b, d.state)
		if err != nil {
			return chain.TransactionKind{}, fmt.Errorf("input %d: %w", i, err)
		}
	}
	for i, cs := range cmds {
		cmd, err := d.buildCommand(&cs, args)
		if err != nil {
			return chain.TransactionKind{}, fmt.Errorf("command %d: %w", i, err)
		}
		if _, err := b.Command(cmd); err != nil {
			return chain.TransactionKind{}, fmt.Errorf("command %d: %w", i, err)
		}
	}
	return b.Finish(), nil
}

// argFor maps a spec index to an argument: non-negative indices select
// step inputs, negative indices select prior command results (-1 is the
// result of command 0), and math.MinInt selects the gas coin.
func argFor(idx int, args []chain.Argument) (chain.Argument, error) {
	switch {
	case idx == math.MinInt:
		return chain.GasCoinArg(), nil
	case idx < 0:
		r := -(idx + 1)
		if r > math.MaxUint16 {
			return chain.Argument{}, fmt.Errorf("result index %d out of range", idx)
		}
		return chain.ResultArg(uint16(r)), nil
	case idx < len(args):
		return args[idx], nil
	}
	return chain.Argument{}, fmt.Errorf("input index %d out of range", idx)
}

func argsFor(idxs []int, args []chain.Argument) ([]chain.Argument, error) {
	out := make([]chain.Argument, len(idxs))
	for i, idx := range idxs {
		a, err := argFor(idx, args)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (d *Driver) buildCommand(cs *CommandSpec, args []chain.Argument) (chain.Command, error) {
	switch cs.Kind {
	case "transfer":
		if cs.Recipient == nil {
			return nil, fmt.Errorf("transfer: missing recipient")
		}
		objs, err := argsFor(cs.Objects, args)
		if err != nil {
			return nil, err
		}
		rec, err := argFor(*cs.Recipient, args)
		if err != nil {
			return nil, err
		}
		return chain.TransferCommand{Objects: objs, Recipient: rec}, nil
	case "split":
		if cs.Coin == nil {
			return nil, fmt.Errorf("split: missing coin")
		}
		coin, err := argFor(*cs.Coin, args)
		if err != nil {
			return nil, err
		}
		amounts, err := argsFor(cs.Amounts, args)
		if err != nil {
			return nil, err
		}
		return chain.SplitCommand{Coin: coin, Amounts: amounts}, nil
	case "merge":
		if cs.Coin == nil {
			return nil, fmt.Errorf("merge: missing coin")
		}
		dst, err := argFor(*cs.Coin, args)
		if err != nil {
			return nil, err
		}
		srcs, err := argsFor(cs.Coins, args)
		if err != nil {
			return nil, err
		}
		return chain.MergeCommand{Destination: dst, Sources: srcs}, nil
	case "publish":
		pkg, ok := d.state.StagedPackageFor(cs.Package)
		if !ok {
			return nil, fmt.Errorf("publish: package %q not staged", cs.Package)
		}
		return chain.PublishCommand{Modules: pkg.Modules}, nil
	case "make-vec":
		elems, err := argsFor(cs.Elems, args)
		if err != nil {
			return nil, err
		}
		return chain.MakeVecCommand{Elems: elems}, nil
	case "call":
		h, err := script.ParseHandle(cs.Package)
		if err != nil {
			return nil, fmt.Errorf("call: package: %w", err)
		}
		id, ok := d.state.ResolveHandle(h)
		if !ok {
			return nil, fmt.Errorf("call: unknown package handle %s", h)
		}
		mod, fn, ok := strings.Cut(cs.Function, "::")
		if !ok {
			return nil, fmt.Errorf("call: function %q is not module::function", cs.Function)
		}
		callArgs, err := argsFor(cs.Args, args)
		if err != nil {
			return nil, err
		}
		return chain.CallCommand{Package: id, Module: mod, Function: fn, Args: callArgs}, nil
	}
	return nil, fmt.Errorf("unknown command kind %q", cs.Kind)
}

// execute submits a transaction, binds enumerated handles for what it
// created, and writes its trace. An ExecError surfaces as the step error.
func (d *Driver) execute(w io.Writer, txn *chain.Transaction) error {
	eff, execErr, err := d.backend.ExecuteTransaction(txn)
	if err != nil {
		return err
	}
	d.digests = append(d.digests, eff.TransactionDigest)
	no := d.state.NextCommand()
	d.state.BindCreated(no, eff.Created)
	d.writeEffects(w, eff)
	if execErr != nil {
		return execErr
	}
	return nil
}

func (d *Driver) writeEffects(w io.Writer, eff *chain.TransactionEffects) {
	fmt.Fprintf(w, "status: %s, gas: %d\n", eff.Status, eff.GasUsed)
	if len(eff.Created) > 0 {
		fmt.Fprintf(w, "created: %s\n", d.refList(eff.Created))
	}
	if len(eff.Mutated) > 0 {
		fmt.Fprintf(w, "mutated: %s\n", d.refList(eff.Mutated))
	}
	if len(eff.Deleted) > 0 {
		fmt.Fprintf(w, "deleted: %s\n", d.refList(eff.Deleted))
	}
}

// refList renders refs by enumerated handle where one is bound, sorted
// for stable traces.
func (d *Driver) refList(refs []chain.ObjectRef) string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = d.state.DisplayName(ref.ID)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (d *Driver) runProgrammable(w io.Writer, s *ProgrammableStep) error {
	kind, err := d.buildKind(s.Inputs, s.Commands)
	if err != nil {
		return err
	}
	return d.execute(w, d.makeTxn(s.Sender, s.GasBudget, s.GasPrice, kind))
}

func (d *Driver) makeTxn(sender string, gasBudget, gasPrice uint64, kind chain.TransactionKind) *chain.Transaction {
	if gasBudget == 0 {
		gasBudget = defaultGasBudget
	}
	if gasPrice == 0 {
		gasPrice = defaultGasPrice
	}
	return &chain.Transaction{
		Sender:    d.resolveAccount(sender),
		GasBudget: gasBudget,
		GasPrice:  gasPrice,
		Kind:      kind,
	}
}

func (d *Driver) runViewObject(w io.Writer, s *ViewObjectStep) error {
	h, err := script.ParseHandle(s.Object)
	if err != nil {
		return err
	}
	id, ok := d.state.ResolveHandle(h)
	if !ok {
		return fmt.Errorf("unknown object handle %s", h)
	}
	var obj *chain.Object
	if s.Version > 0 {
		obj, err = d.state.GetObjectAt(id, chain.Version(s.Version))
	} else {
		obj, err = d.state.GetObject(id)
	}
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("object %s not found", h)
	}
	fmt.Fprintf(w, "object %s: type=%s owner=%s version=%d\n",
		d.state.DisplayName(obj.ID), obj.TypeTag, ownerString(obj.Owner), obj.Version)
	if obj.TypeTag == "coin" {
		fmt.Fprintf(w, "balance: %d\n", ledger.CoinValue(obj))
	} else {
		fmt.Fprintf(w, "contents: %s\n", shortHex(obj.Contents))
	}
	return nil
}

func ownerString(o chain.Owner) string {
	switch o.Kind {
	case chain.OwnerAddress:
		return "address(" + o.Address.Short() + ")"
	case chain.OwnerObject:
		return "object(" + o.Address.Short() + ")"
	case chain.OwnerShared:
		return fmt.Sprintf("shared(since %d)", o.InitialShared)
	case chain.OwnerImmutable:
		return "immutable"
	}
	return "unknown"
}

func shortHex(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	if len(b) > 32 {
		return hex.EncodeToString(b[:32]) + "..."
	}
	return hex.EncodeToString(b)
}

func (d *Driver) runTransferObject(w io.Writer, s *TransferObjectStep) error {
	h, err := script.ParseHandle(s.Object)
	if err != nil {
		return err
	}
	b := txbuilder.New()
	obj, err := script.ToArgument(script.ObjectRefValue{Handle: h}, b, d.state)
	if err != nil {
		return err
	}
	rec, err := b.Pure(d.resolveAccount(s.Recipient).Bytes())
	if err != nil {
		return err
	}
	if _, err := b.Command(chain.TransferCommand{Objects: []chain.Argument{obj}, Recipient: rec}); err != nil {
		return err
	}
	return d.execute(w, d.makeTxn(s.Sender, s.GasBudget, 0, b.Finish()))
}

func (d *Driver) runStagePackage(w io.Writer, s *StagePackageStep) error {
	modules := make([][]byte, len(s.Modules))
	var all []byte
	for i, m := range s.Modules {
		data, err := hex.DecodeString(m)
		if err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
		modules[i] = data
		all = append(all, data...)
	}
	pkg := StagedPackage{
		Name:    s.Name,
		Modules: modules,
		Digest:  chain.ComputeDigest(chain.DigestDomainPackage, all),
	}
	d.state.Stage(pkg)
	fmt.Fprintf(w, "staged %s, digest %x\n", s.Name, pkg.Digest.Bytes()[:8])
	return nil
}

func (d *Driver) runPublish(w io.Writer, s *PublishStep) error {
	pkg, ok := d.state.StagedPackageFor(s.Package)
	if !ok {
		return fmt.Errorf("package %q not staged", s.Package)
	}
	b := txbuilder.New()
	if _, err := b.Command(chain.PublishCommand{Modules: pkg.Modules}); err != nil {
		return err
	}
	if err := d.execute(w, d.makeTxn(s.Sender, s.GasBudget, 0, b.Finish())); err != nil {
		return err
	}
	d.state.Unstage(s.Package)
	return nil
}

func (d *Driver) runSetAddress(w io.Writer, s *SetAddressStep) error {
	h, err := script.ParseHandle(s.Object)
	if err != nil {
		return err
	}
	id, ok := d.state.ResolveHandle(h)
	if !ok {
		return fmt.Errorf("unknown object handle %s", h)
	}
	d.state.BindAccount(s.Name, id.AsAddress())
	fmt.Fprintf(w, "%s = %s\n", s.Name, id.AsAddress().Short())
	return nil
}

func (d *Driver) runCreateCheckpoint(w io.Writer, s *CreateCheckpointStep) error {
	count := s.Count
	if count == 0 {
		count = 1
	}
	var last *chain.VerifiedCheckpoint
	for i := uint64(0); i < count; i++ {
		ckpt, err := d.backend.CreateCheckpoint()
		if err != nil {
			return err
		}
		last = ckpt
	}
	fmt.Fprintf(w, "checkpoint %d, %d transactions\n", last.SequenceNumber, len(last.Transactions))
	return nil
}

func (d *Driver) runViewCheckpoint(w io.Writer) error {
	viewer, ok := d.backend.(interface {
		LatestCheckpoint() *chain.VerifiedCheckpoint
	})
	if !ok {
		return &adapter.UnsupportedError{Op: "view-checkpoint", Mode: "validator"}
	}
	ckpt := viewer.LatestCheckpoint()
	if ckpt == nil {
		return fmt.Errorf("no checkpoint yet")
	}
	fmt.Fprintf(w, "checkpoint %d: epoch=%d transactions=%d digest=%x\n",
		ckpt.SequenceNumber, ckpt.Epoch, len(ckpt.Transactions), ckpt.Digest().Bytes()[:8])
	return nil
}

func (d *Driver) runAdvanceClock(w io.Writer, s *AdvanceClockStep) error {
	dur, err := time.ParseDuration(s.Duration)
	if err != nil {
		return err
	}
	eff, err := d.backend.AdvanceClock(dur)
	if err != nil {
		return err
	}
	d.digests = append(d.digests, eff.TransactionDigest)
	d.state.NextCommand()
	fmt.Fprintf(w, "clock advanced %s, now %dms\n", dur, eff.TimestampMs)
	return nil
}

func (d *Driver) runAdvanceEpoch(w io.Writer) error {
	if err := d.backend.AdvanceEpoch(); err != nil {
		return err
	}
	fmt.Fprintln(w, "epoch advanced")
	return nil
}

func (d *Driver) runRequestFunds(w io.Writer, s *RequestFundsStep) error {
	amount := s.Amount
	if amount == 0 {
		amount = defaultFaucetAmount
	}
	eff, err := d.backend.RequestFunds(d.resolveAccount(s.Recipient), amount)
	if err != nil {
		return err
	}
	d.digests = append(d.digests, eff.TransactionDigest)
	no := d.state.NextCommand()
	d.state.BindCreated(no, eff.Created)
	d.writeEffects(w, eff)
	return nil
}

func (d *Driver) runQueryEvents(w io.Writer, s *QueryEventsStep) error {
	if s.Transaction < 0 || s.Transaction >= len(d.digests) {
		return fmt.Errorf("transaction index %d out of range", s.Transaction)
	}
	limit := s.Limit
	if limit == 0 {
		limit = 100
	}
	events, err := d.backend.QueryEventsAsc(d.digests[s.Transaction], limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d events\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(w, "event %d: %s from %s, %s\n", ev.Seq, ev.Type, ev.Sender.Short(), shortHex(ev.Payload))
	}
	return nil
}

func (d *Driver) runDevInspect(w io.Writer, s *DevInspectStep) error {
	kind, err := d.buildKind(s.Inputs, s.Commands)
	if err != nil {
		return err
	}
	res, err := d.backend.DevInspect(d.resolveAccount(s.Sender), kind, s.GasPrice)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "dev-inspect status: %s\n", res.Effects.Status)
	if res.Error != nil {
		fmt.Fprintf(w, "dev-inspect error: %s\n", res.Error)
	}
	fmt.Fprintf(w, "would create %d, mutate %d\n", len(res.Effects.Created), len(res.Effects.Mutated))
	return nil
}
