/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package googleexecutor implements executor.Completer on Gemini.

A single GenerateContent call is made per request; system instructions are sent
as the request's SystemInstruction. Token usage from the response's usage
metadata is recorded as GenAI metrics and on the in-flight trace.

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
	    APIKey:  key,
	    Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
	    return err
	}
	exec, err := googleexecutor.New(client, googleexecutor.WithModel("gemini-2.5-pro"))
*/
package googleexecutor
