// Package chain defines the core ledger data model shared by the script
// resolver, the transaction builder, and both execution backends: addresses,
// object identities and references, ownership modes, transactions with their
// input arguments, execution effects, events, and checkpoints.
//
// Nothing in this package mutates chain state. It is a vocabulary package:
// the backends own state, the resolver produces values in these types, and
// the driver threads them between the two.
package chain
