/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package orchestrator drives one change request through its phases:
//
//	Fetching → Cataloging → Selecting → Reading → Generating → Applying →
//	Committing → Publishing → Complete
//
// Any phase may end the run in Failed, which emits exactly one error event.
// If the consumer detaches the run ends in Cancelled and nothing more is
// emitted. Side effects already made (a pushed branch, an opened pull request)
// are never undone. The working copy is removed on every exit path.
package orchestrator
