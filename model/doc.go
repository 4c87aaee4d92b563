// Package model defines the language-model abstraction used by phase
// services, together with a scripted mock for tests and a pricing table that
// converts token usage into cost records.
//
// The contract is deliberately request/response: a phase service's Execute
// must not return before its model calls complete, so streaming has no place
// at this boundary. Provider adapters live in the subpackages anthropic and
// openai.
package model
