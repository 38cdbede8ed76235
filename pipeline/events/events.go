/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package events defines the progress events of a change request and the
// bounded, ordered stream that carries them to a single consumer.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the wire tag of an event.
type Kind string

const (
	KindAIMessage Kind = "AI Message"
	KindToolRead  Kind = "Tool: Read"
	KindToolEdit  Kind = "Tool: Edit"
	KindToolBash  Kind = "Tool: Bash"
	KindComplete  Kind = "complete"
	KindError     Kind = "error"
)

// Event is one progress event. The set of implementations is closed.
type Event interface {
	Kind() Kind
	// Terminal reports whether the event ends the stream.
	Terminal() bool
	isEvent()
}

// AIMessage is narrative progress text.
type AIMessage struct {
	Message string
}

// ToolRead reports a file read into the model's context.
type ToolRead struct {
	FilePath string
}

// ToolEdit reports one edit of the plan. OldStr is empty for created files.
type ToolEdit struct {
	FilePath string
	OldStr   string
	NewStr   string
}

// ToolBash reports a version-control step in shell form with its output.
type ToolBash struct {
	Command string
	Output  string
}

// Complete ends a successful run.
type Complete struct {
	PRURL string
}

// Error ends a failed run.
type Error struct {
	Message string
}

func (AIMessage) Kind() Kind { return KindAIMessage }
func (ToolRead) Kind() Kind  { return KindToolRead }
func (ToolEdit) Kind() Kind  { return KindToolEdit }
func (ToolBash) Kind() Kind  { return KindToolBash }
func (Complete) Kind() Kind  { return KindComplete }
func (Error) Kind() Kind     { return KindError }

func (AIMessage) Terminal() bool { return false }
func (ToolRead) Terminal() bool  { return false }
func (ToolEdit) Terminal() bool  { return false }
func (ToolBash) Terminal() bool  { return false }
func (Complete) Terminal() bool  { return true }
func (Error) Terminal() bool     { return true }

func (AIMessage) isEvent() {}
func (ToolRead) isEvent()  {}
func (ToolEdit) isEvent()  {}
func (ToolBash) isEvent()  {}
func (Complete) isEvent()  {}
func (Error) isEvent()     {}

// Wire shapes. Field order is part of the format.
type (
	wireMessage struct {
		Type    Kind   `json:"type"`
		Message string `json:"message"`
	}
	wireRead struct {
		Type     Kind   `json:"type"`
		FilePath string `json:"filepath"`
	}
	wireEdit struct {
		Type     Kind   `json:"type"`
		FilePath string `json:"filepath"`
		OldStr   string `json:"old_str"`
		NewStr   string `json:"new_str"`
	}
	wireBash struct {
		Type    Kind   `json:"type"`
		Command string `json:"command"`
		Output  string `json:"output"`
	}
	wireComplete struct {
		Type  Kind   `json:"type"`
		PRURL string `json:"pr_url"`
	}
)

// Encode renders ev as its JSON payload.
func Encode(ev Event) ([]byte, error) {
	var v any
	switch e := ev.(type) {
	case AIMessage:
		v = wireMessage{Type: KindAIMessage, Message: e.Message}
	case ToolRead:
		v = wireRead{Type: KindToolRead, FilePath: e.FilePath}
	case ToolEdit:
		v = wireEdit{Type: KindToolEdit, FilePath: e.FilePath, OldStr: e.OldStr, NewStr: e.NewStr}
	case ToolBash:
		v = wireBash{Type: KindToolBash, Command: e.Command, Output: e.Output}
	case Complete:
		v = wireComplete{Type: KindComplete, PRURL: e.PRURL}
	case Error:
		v = wireMessage{Type: KindError, Message: e.Message}
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a JSON payload produced by Encode.
func Decode(b []byte) (Event, error) {
	var raw struct {
		Type     Kind   `json:"type"`
		Message  string `json:"message"`
		FilePath string `json:"filepath"`
		OldStr   string `json:"old_str"`
		NewStr   string `json:"new_str"`
		Command  string `json:"command"`
		Output   string `json:"output"`
		PRURL    string `json:"pr_url"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	switch raw.Type {
	case KindAIMessage:
		return AIMessage{Message: raw.Message}, nil
	case KindToolRead:
		return ToolRead{FilePath: raw.FilePath}, nil
	case KindToolEdit:
		return ToolEdit{FilePath: raw.FilePath, OldStr: raw.OldStr, NewStr: raw.NewStr}, nil
	case KindToolBash:
		return ToolBash{Command: raw.Command, Output: raw.Output}, nil
	case KindComplete:
		return Complete{PRURL: raw.PRURL}, nil
	case KindError:
		return Error{Message: raw.Message}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", raw.Type)
	}
}
