/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package errdefs defines the failures a change request can end with. Each
// is reported to the client as the message of the single terminal error frame.
package errdefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AccessError reports a repository that cannot be parsed, found, or cloned.
type AccessError struct {
	URL    string
	Reason string
	Err    error
}

func (e *AccessError) Error() string {
	msg := fmt.Sprintf("cannot access repository %s: %s", e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AccessError) Unwrap() error { return e.Err }

// SelectionParseError reports a selection reply that no parsing layer accepted.
type SelectionParseError struct {
	Err error
}

func (e *SelectionParseError) Error() string {
	return fmt.Sprintf("could not understand the file selection: %v", e.Err)
}

func (e *SelectionParseError) Unwrap() error { return e.Err }

// NoChangesIdentifiedError reports that the model, or the working copy,
// produced no change worth publishing.
type NoChangesIdentifiedError struct {
	Reason string
}

func (e *NoChangesIdentifiedError) Error() string {
	if e.Reason == "" {
		return "no changes identified"
	}
	return "no changes identified: " + e.Reason
}

// PatchConflictError reports an edit that cannot be applied unambiguously.
// Occurrences is meaningful for text replacements only.
type PatchConflictError struct {
	Path        string
	Occurrences int
	Reason      string
}

func (e *PatchConflictError) Error() string {
	return fmt.Sprintf("cannot apply edit to %s: %s", e.Path, e.Reason)
}

// GitOperationError reports a failed local or remote Git step.
type GitOperationError struct {
	Op  string
	Err error
}

func (e *GitOperationError) Error() string {
	return fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
}

func (e *GitOperationError) Unwrap() error { return e.Err }

// PublishError reports that the hosting service refused the pull request.
type PublishError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *PublishError) Error() string {
	msg := "could not open pull request: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

// TimeoutError reports an external call that exceeded its budget.
type TimeoutError struct {
	Step string
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Step)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConfigurationError reports missing credentials, detected before any work starts.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ") + " not configured"
}

// Timeout converts a deadline expiry of a step's own context into a
// *TimeoutError. The parent context distinguishes a step budget running out
// from the whole request being cancelled.
func Timeout(parent context.Context, step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return &TimeoutError{Step: step, Err: err}
	}
	return err
}

// Kind returns a bounded label for err, for metrics and traces.
func Kind(err error) string {
	var (
		access   *AccessError
		parse    *SelectionParseError
		none     *NoChangesIdentifiedError
		conflict *PatchConflictError
		git      *GitOperationError
		publish  *PublishError
		timeout  *TimeoutError
		config   *ConfigurationError
	)
	switch {
	case err == nil:
		return ""
	// Timeouts may wrap any of the others; report them as timeouts.
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &access):
		return "access"
	case errors.As(err, &parse):
		return "selection_parse"
	case errors.As(err, &none):
		return "no_changes"
	case errors.As(err, &conflict):
		return "patch_conflict"
	case errors.As(err, &git):
		return "git"
	case errors.As(err, &publish):
		return "publish"
	case errors.As(err, &config):
		return "configuration"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal"
	}
}
