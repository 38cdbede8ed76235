/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changemanager

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

const (
	titleLead     = "Automated changes: "
	maxTitle      = 200
	titlePromptAt = 150

	footer = "This pull request was opened automatically by changeagent from the request above. Review every change before merging."
)

// Edit summarizes one changed file for the pull request body.
type Edit struct {
	Path    string
	Op      string
	Added   int
	Removed int
}

// Title derives the pull request title from the prompt. Long prompts are
// cut so the title stays readable.
func Title(prompt string) string {
	oneLine := strings.Join(strings.Fields(prompt), " ")
	title := titleLead + oneLine
	if utf8.RuneCountInString(title) <= maxTitle {
		return title
	}
	if utf8.RuneCountInString(oneLine) > titlePromptAt {
		oneLine = string([]rune(oneLine)[:titlePromptAt])
	}
	return titleLead + strings.TrimSpace(oneLine) + "..."
}

// Body renders the pull request description: the request, a table of the
// edited files and a footer.
func Body(prompt string, edits []Edit) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Request\n\n")
	sb.WriteString(strings.TrimSpace(prompt))
	sb.WriteString("\n\n## Changes\n\n")

	if len(edits) == 0 {
		sb.WriteString("No file summary is available.\n")
	} else {
		table := newTable(&sb, []string{"File", "Change", "Added", "Removed"})
		for _, e := range edits {
			row := []string{
				"`" + e.Path + "`",
				e.Op,
				fmt.Sprintf("+%d", e.Added),
				fmt.Sprintf("-%d", e.Removed),
			}
			if err := table.Append(row); err != nil {
				return "", fmt.Errorf("appending row: %w", err)
			}
		}
		if err := table.Render(); err != nil {
			return "", fmt.Errorf("rendering table: %w", err)
		}
	}

	sb.WriteString("\n---\n")
	sb.WriteString(footer)
	sb.WriteString("\n")
	return sb.String(), nil
}

// newTable creates a markdown table writer without outer top or bottom rules.
func newTable(w *strings.Builder, headers []string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
