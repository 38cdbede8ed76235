/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

// Bindable represents a request that can bind its values to a Prompt.
type Bindable interface {
	Bind(prompt *Prompt) (*Prompt, error)
}

// Render binds b to the template and builds the final prompt text.
func Render(template *Prompt, b Bindable) (string, error) {
	bound, err := b.Bind(template)
	if err != nil {
		return "", err
	}
	return bound.Build()
}
