// Package script implements the symbolic value language embedded in
// scenario scripts: a small extension of the base value grammar adding
// object references (optionally version-pinned), object vectors, receiving
// references, and staged-package digests, plus the resolver that turns a
// parsed symbolic value into a concrete transaction input or builder
// argument against scenario state.
//
// Parsing is pure. Resolution reads the scenario-state collaborator fresh
// on every call and produces typed failures; see errors.go for the
// taxonomy.
package script
