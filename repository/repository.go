/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package repository identifies the GitHub repository a change request targets.
package repository

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"chainguard.dev/changeagent/pipeline/errdefs"
)

// Ref names a GitHub repository.
type Ref struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (r Ref) String() string {
	return r.Owner + "/" + r.Name
}

// URL returns the canonical https clone URL.
func (r Ref) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", r.Owner, r.Name)
}

var (
	ownerRE = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	nameRE  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// Parse accepts http(s)://github.com/<owner>/<name> with an optional ".git"
// suffix or trailing slash. Anything else is an *errdefs.AccessError.
func Parse(raw string) (Ref, error) {
	fail := func(reason string) (Ref, error) {
		return Ref{}, &errdefs.AccessError{URL: raw, Reason: reason}
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fail("malformed URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fail("only http(s) URLs are supported")
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return fail("only github.com repositories are supported")
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return fail("unexpected credentials, query or fragment")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 {
		return fail("expected https://github.com/<owner>/<repository>")
	}
	owner, name := parts[0], strings.TrimSuffix(parts[1], ".git")
	if !ownerRE.MatchString(owner) || !nameRE.MatchString(name) || name == "." || name == ".." {
		return fail("invalid owner or repository name")
	}
	return Ref{Owner: owner, Name: name}, nil
}
