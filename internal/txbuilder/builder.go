// Package txbuilder assembles programmable transaction kinds from resolved
// inputs and commands. It deduplicates inputs so that a script mentioning
// the same object twice binds both mentions to one input slot.
package txbuilder

import (
	"fmt"

	"github.com/roach88/chainscript/internal/chain"
)

// Builder accumulates inputs and commands for one programmable transaction.
// The zero value is not usable; call New.
type Builder struct {
	inputs   []chain.CallArg
	commands []chain.Command

	pureIndex map[string]uint16
	objIndex  map[chain.ObjectID]uint16
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{
		pureIndex: make(map[string]uint16),
		objIndex:  make(map[chain.ObjectID]uint16),
	}
}

// Pure registers canonical value bytes as a pure input, reusing an existing
// slot for identical bytes.
func (b *Builder) Pure(data []byte) (chain.Argument, error) {
	if idx, ok := b.pureIndex[string(data)]; ok {
		return chain.InputArg(idx), nil
	}
	idx, err := b.push(chain.Pure{Data: data})
	if err != nil {
		return chain.Argument{}, err
	}
	b.pureIndex[string(data)] = idx
	return chain.InputArg(idx), nil
}

// Object registers an object input, reusing an existing slot for the same
// object ID. Re-registering a shared object with mutable access upgrades a
// previously read-only slot; registering the same ID under two different
// input shapes is an error.
func (b *Builder) Object(arg chain.ObjectArg) (chain.Argument, error) {
	id := arg.ObjectID()
	if idx, ok := b.objIndex[id]; ok {
		existing := b.inputs[idx].(chain.ObjectInput).Arg
		merged, err := mergeObjectArgs(existing, arg)
		if err != nil {
			return chain.Argument{}, err
		}
		b.inputs[idx] = chain.ObjectInput{Arg: merged}
		return chain.InputArg(idx), nil
	}
	idx, err := b.push(chain.ObjectInput{Arg: arg})
	if err != nil {
		return chain.Argument{}, err
	}
	b.objIndex[id] = idx
	return chain.InputArg(idx), nil
}

// Input registers an already-shaped call argument.
func (b *Builder) Input(arg chain.CallArg) (chain.Argument, error) {
	switch a := arg.(type) {
	case chain.Pure:
		return b.Pure(a.Data)
	case chain.ObjectInput:
		return b.Object(a.Arg)
	default:
		return chain.Argument{}, fmt.Errorf("unknown call argument type %T", arg)
	}
}

// MakeObjVec registers every object argument as an input and appends a
// vector-assembly command over them, returning the command's result.
func (b *Builder) MakeObjVec(args []chain.ObjectArg) (chain.Argument, error) {
	elems := make([]chain.Argument, len(args))
	for i, a := range args {
		arg, err := b.Object(a)
		if err != nil {
			return chain.Argument{}, err
		}
		elems[i] = arg
	}
	return b.Command(chain.MakeVecCommand{Elems: elems})
}

// Command appends a command and returns an argument referring to its result.
func (b *Builder) Command(cmd chain.Command) (chain.Argument, error) {
	if len(b.commands) > int(^uint16(0)) {
		return chain.Argument{}, fmt.Errorf("too many commands")
	}
	idx := uint16(len(b.commands))
	b.commands = append(b.commands, cmd)
	return chain.ResultArg(idx), nil
}

// Finish returns the assembled transaction kind. The builder must not be
// reused afterwards.
func (b *Builder) Finish() chain.TransactionKind {
	return chain.ProgrammableKind(b.inputs, b.commands)
}

func (b *Builder) push(arg chain.CallArg) (uint16, error) {
	if len(b.inputs) > int(^uint16(0)) {
		return 0, fmt.Errorf("too many inputs")
	}
	idx := uint16(len(b.inputs))
	b.inputs = append(b.inputs, arg)
	return idx, nil
}

func mergeObjectArgs(existing, incoming chain.ObjectArg) (chain.ObjectArg, error) {
	es, eShared := existing.(chain.SharedObject)
	is, iShared := incoming.(chain.SharedObject)
	if eShared && iShared {
		if es.InitialShared != is.InitialShared {
			return nil, fmt.Errorf(
				"mismatched initial shared version for object %s", es.ID.Short())
		}
		es.Mutable = es.Mutable || is.Mutable
		return es, nil
	}
	if existing != incoming {
		return nil, fmt.Errorf(
			"mismatched argument shapes for object %s", existing.ObjectID().Short())
	}
	return existing, nil
}
