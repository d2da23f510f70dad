package scenario

import (
	"github.com/roach88/chainscript/internal/adapter"
	"github.com/roach88/chainscript/internal/chain"
	"github.com/roach88/chainscript/internal/script"
)

// StagedPackage is a package declared in a script but not yet published.
// Its digest is usable as a transaction input before publication.
type StagedPackage struct {
	Name    string
	Modules [][]byte
	Digest  chain.Digest
}

// State is the scenario-state collaborator: the handle table, the
// staged-package table, and the named-address book, all scoped to one
// scenario and one backend binding. It satisfies script.State.
type State struct {
	backend adapter.Backend

	handles  map[script.Handle]chain.ObjectID
	names    map[chain.ObjectID]string
	staged   map[string]StagedPackage
	accounts map[string]chain.Address

	// commandNo numbers executed script commands; enumerated handles are
	// (commandNo, creation index) pairs.
	commandNo uint64
}

var _ script.State = (*State)(nil)

// NewState binds scenario state to a backend for the scenario's lifetime.
func NewState(backend adapter.Backend) *State {
	return &State{
		backend:  backend,
		handles:  make(map[script.Handle]chain.ObjectID),
		names:    make(map[chain.ObjectID]string),
		staged:   make(map[string]StagedPackage),
		accounts: make(map[string]chain.Address),
	}
}

// ResolveHandle maps a handle to a real object identity. Known handles
// resolve to their address bytes directly; enumerated handles resolve
// through the table filled in as commands create objects.
func (s *State) ResolveHandle(h script.Handle) (chain.ObjectID, bool) {
	if h.Kind == script.HandleKnown {
		return chain.ObjectIDFromAddress(h.Address), true
	}
	id, ok := s.handles[h]
	return id, ok
}

// StagedPackageDigest returns the digest of the package staged under name.
func (s *State) StagedPackageDigest(name string) (chain.Digest, bool) {
	pkg, ok := s.staged[name]
	return pkg.Digest, ok
}

// StagedPackageFor returns the full staged record, for publication.
func (s *State) StagedPackageFor(name string) (StagedPackage, bool) {
	pkg, ok := s.staged[name]
	return pkg, ok
}

// Stage records a package under a script-local name. Restaging a name
// replaces the previous record.
func (s *State) Stage(pkg StagedPackage) {
	s.staged[pkg.Name] = pkg
}

// Unstage removes a staged package, typically after publication.
func (s *State) Unstage(name string) {
	delete(s.staged, name)
}

// GetObject reads the latest object version through the backend.
func (s *State) GetObject(id chain.ObjectID) (*chain.Object, error) {
	return s.backend.GetObject(id)
}

// GetObjectAt reads one exact object version through the backend.
func (s *State) GetObjectAt(id chain.ObjectID, v chain.Version) (*chain.Object, error) {
	return s.backend.GetObjectAt(id, v)
}

// BindAccount names an address for use as a sender or recipient.
func (s *State) BindAccount(name string, addr chain.Address) {
	s.accounts[name] = addr
}

// Account resolves a named account.
func (s *State) Account(name string) (chain.Address, bool) {
	a, ok := s.accounts[name]
	return a, ok
}

// NextCommand advances the command counter and returns the new number.
// Called once per executed, object-creating script command.
func (s *State) NextCommand() uint64 {
	s.commandNo++
	return s.commandNo
}

// BindCreated assigns enumerated handles (commandNo, j) to the objects a
// command created, in their effects order.
func (s *State) BindCreated(commandNo uint64, created []chain.ObjectRef) {
	for j, ref := range created {
		h := script.EnumeratedHandle(commandNo, uint64(j))
		s.handles[h] = ref.ID
		s.names[ref.ID] = h.String()
	}
}

// DisplayName renders an object ID by its enumerated handle when one is
// bound, falling back to the shortened ID.
func (s *State) DisplayName(id chain.ObjectID) string {
	if name, ok := s.names[id]; ok {
		return name
	}
	return id.Short()
}
