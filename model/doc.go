// Package model defines the normalized request/response contract between the
// agent runtime and language model providers, plus in-memory implementations
// for deterministic testing. Provider adapters live in the subpackages
// (anthropic, openai).
package model
