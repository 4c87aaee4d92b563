// Package phase provides the built-in phase services: communication,
// decision, world update, validation and a markdown transcript writer for
// the persistence slot.
//
// The model-backed phases (communication, decision, world update) drive one
// language model per actor, or a single narrator, through small injectable
// prompt templates. They append communications, decisions, world states and
// cost records to the state they receive; they never mutate it. Prompt
// engineering is deliberately out of scope: the default templates are
// minimal and every one of them can be replaced through options.
//
// All services satisfy core.PhaseService and are registered on an
// orchestrator per phase slot. Model call errors are fatal to the current
// turn, per the phase contract; recoverable findings (validation issues,
// unparseable decisions) are encoded into the returned state instead.
package phase
