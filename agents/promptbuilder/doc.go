/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package promptbuilder provides injection-resistant prompt construction.

Templates are compile-time string literals with {{name}} placeholders. Values
are bound through encoders (XML, JSON, YAML, or fenced file sections), never
spliced in raw, and substitution is single-pass so a bound value can never
introduce a new placeholder.

# Basic Usage

	var selectPrompt = promptbuilder.MustNewPrompt(`
	Request:
	{{request}}

	Repository files:
	{{catalog}}
	`)

	p, err := selectPrompt.BindXML("request", userRequest)
	if err != nil {
		return err
	}
	p, err = p.BindYAML("catalog", paths)
	if err != nil {
		return err
	}
	text, err := p.Build()

# Binding Methods

	p, err = p.BindStringLiteral("key", "literal value") // developer literals only
	p, err = p.BindJSON("schema", schema)                 // indented JSON
	p, err = p.BindXML("request", req)                    // indented XML, escapes user text
	p, err = p.BindYAML("catalog", paths)                 // YAML
	p, err = p.BindFiles("files", files)                  // "### path" + fenced content per file

# Bindable

Request types implement Bindable and are rendered with Render:

	text, err := promptbuilder.Render(template, request)

# Errors

The package returns errors for malformed placeholders, binding a name the
template does not contain, rebinding a placeholder, building with unbound
placeholders, and marshaling failures.

Prompt values are immutable; every Bind returns a new instance, so templates
are safe to share across goroutines.
*/
package promptbuilder
