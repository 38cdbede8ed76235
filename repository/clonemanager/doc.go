/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package clonemanager provides per-request git clones for change requests.
// A Manager is configured with the GitHub token source and commit identity,
// and exposes Lease handles that:
//   - Hold an isolated working tree checked out at the repository's default branch.
//   - Offer CommitAndPush, which branches, stages everything, commits with the
//     configured identity and pushes the branch with one retry on transient
//     network failures.
//
// Every clone lives in its own temporary directory, removed by Lease.Close.
// Clones are never shared between requests.
package clonemanager
