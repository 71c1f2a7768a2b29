/*
 * This file is part of Aloud (https://github.com/aloudlabs/aloud-tts).
 * Copyright (C) 2025 Aloud Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package tts

import "errors"

// Configuration errors, raised synchronously before any stream session exists.
var (
	// ErrMissingAPIKey is returned when the Deepgram backend is used
	// without a configured credential.
	ErrMissingAPIKey = errors.New("deepgram API key is not configured")

	// ErrNoProvider is returned when no chunk provider could be
	// constructed from the registered factories.
	ErrNoProvider = errors.New("no speech provider available")
)

// SynthesisError carries backend context for host-facing error display.
type SynthesisError struct {
	// Backend is the adapter that produced the error.
	Backend string

	// Message describes what failed.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Backend + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Backend + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

func newSynthesisError(backend, message string, cause error) *SynthesisError {
	return &SynthesisError{Backend: backend, Message: message, Cause: cause}
}
