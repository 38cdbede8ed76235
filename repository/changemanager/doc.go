/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package changemanager talks to GitHub on behalf of a change request. It
// checks that a repository can be worked on before anything is cloned, and
// opens the pull request once the branch has been pushed.
//
// Inspect uses the GraphQL API to learn the default branch, visibility and
// the token's permission in a single round trip. Open uses the REST API to
// create the pull request, with a title and body derived from the request
// and a markdown table of the applied edits.
package changemanager
