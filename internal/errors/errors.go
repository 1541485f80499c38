// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure the runtime raises on its own (engine startup, console, gateway,
// checkpoints, configuration) carries a machine-readable Kind so the CLI can
// present it without string matching.
//
// Errors coming back from a statement submission are never wrapped here; they
// travel to the caller exactly as the engine produced them.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// EngineOpenFailed indicates the SQL engine could not be opened or pinged.
	EngineOpenFailed Kind = "engine_open_failed"
	// ConfigInvalid indicates a configuration value was rejected.
	ConfigInvalid Kind = "config_invalid"
	// CheckpointFailed indicates a checkpoint could not be written or read.
	CheckpointFailed Kind = "checkpoint_failed"
	// GatewayFailed indicates the SQL gateway could not start or be reached.
	GatewayFailed Kind = "gateway_failed"
	// ConsoleFailed indicates the debug console could not start.
	ConsoleFailed Kind = "console_failed"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the Kind of the first *E in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
