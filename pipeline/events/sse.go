/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"context"
	"fmt"
	"io"
)

// WriteSSE writes ev as one server-sent-events frame: "data: <json>\n\n".
func WriteSSE(w io.Writer, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// Pump is the consumer loop: it writes every event of s to w, calling flush
// after each frame, until the stream closes. If writing fails or ctx ends,
// the stream is detached so the producer stops, and the cause is returned.
func Pump(ctx context.Context, s *Stream, w io.Writer, flush func()) error {
	for {
		select {
		case <-ctx.Done():
			s.Detach()
			return ctx.Err()
		case ev, ok := <-s.Events():
			if !ok {
				return nil
			}
			if err := WriteSSE(w, ev); err != nil {
				s.Detach()
				return err
			}
			if flush != nil {
				flush()
			}
		}
	}
}
