// Package termview draws dashboard panels in a terminal, for previewing
// what the chat panel will show without opening the chat client.
package termview

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/hostpanel/internal/dashboard"
)

// DefaultWidth fits a standard 80 column terminal.
const DefaultWidth = 78

// inlinePerLine matches how chat clients lay out inline fields.
const inlinePerLine = 3

var (
	markdown  = strings.NewReplacer("**", "", "```", "", "`", "")
	timestamp = regexp.MustCompile(`<t:(\d+)(?::[a-zA-Z])?>`)
)

// plain turns chat markdown into terminal text. Timestamps are shown in UTC.
func plain(s string) string {
	s = timestamp.ReplaceAllStringFunc(s, func(m string) string {
		sec, err := strconv.ParseInt(timestamp.FindStringSubmatch(m)[1], 10, 64)
		if err != nil {
			return m
		}
		return time.Unix(sec, 0).UTC().Format("2006-01-02 15:04 UTC")
	})
	return strings.TrimSpace(markdown.Replace(s))
}

func accent(c dashboard.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%06X", int(c)&0xFFFFFF))
}

// Render draws p in a bordered box width columns wide.
func Render(p dashboard.Panel, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	inner := width - 4 // border and padding

	col := accent(p.Color)
	var sections []string

	sections = append(sections, lipgloss.NewStyle().
		Foreground(col).
		Bold(true).
		Width(inner).
		Render(plain(p.Title)))
	if p.Description != "" {
		sections = append(sections, FieldValueStyle.Width(inner).Render(plain(p.Description)))
	}
	if p.Thumbnail != "" {
		sections = append(sections, MutedStyle.Width(inner).Render("🖼  "+p.Thumbnail))
	}
	if fields := renderFields(p.Fields, inner); fields != "" {
		sections = append(sections, "", fields)
	}
	if p.Footer != "" {
		sections = append(sections, "", MutedStyle.Width(inner).Render(plain(p.Footer)))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(col).
		Padding(0, 1).
		Width(width - 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))

	if controls := renderControls(p.Rows); controls != "" {
		return lipgloss.JoinVertical(lipgloss.Left, box, "", controls)
	}
	return box
}

func renderField(f dashboard.Field, width int) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		FieldNameStyle.Width(width).Render(plain(f.Name)),
		FieldValueStyle.Width(width).Render(plain(f.Value)),
	)
}

// renderFields stacks block fields and sets runs of inline fields side by
// side.
func renderFields(fields []dashboard.Field, width int) string {
	var blocks []string
	var run []dashboard.Field

	flush := func() {
		for len(run) > 0 {
			n := len(run)
			if n > inlinePerLine {
				n = inlinePerLine
			}
			colWidth := width / n
			cells := make([]string, n)
			for i, f := range run[:n] {
				cells[i] = lipgloss.NewStyle().Width(colWidth).Render(renderField(f, colWidth-2))
			}
			blocks = append(blocks, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
			run = run[n:]
		}
	}

	for _, f := range fields {
		if f.Inline {
			run = append(run, f)
			continue
		}
		flush()
		blocks = append(blocks, renderField(f, width))
	}
	flush()
	return strings.Join(blocks, "\n\n")
}

func buttonColor(s dashboard.ButtonStyle) lipgloss.Color {
	switch s {
	case dashboard.StylePrimary:
		return Primary
	case dashboard.StyleSuccess:
		return Success
	case dashboard.StyleDanger:
		return Danger
	default:
		return Neutral
	}
}

func renderControl(c dashboard.Control) string {
	switch c.Kind {
	case dashboard.ControlSelect:
		label := c.Placeholder
		for _, o := range c.Options {
			if o.Default {
				label = o.Label
				break
			}
		}
		text := fmt.Sprintf("%s ▾  (%d options)", plain(label), len(c.Options))
		if c.Disabled {
			return SelectStyle.Foreground(Muted).Render(text)
		}
		return SelectStyle.Render(text)
	case dashboard.ControlLink:
		return ButtonStyle.Background(Neutral).Render(plain(c.Label) + " ↗")
	default:
		if c.Disabled {
			return DisabledStyle.Render(plain(c.Label))
		}
		return ButtonStyle.Background(buttonColor(c.Style)).Render(plain(c.Label))
	}
}

func renderControls(rows []dashboard.ControlRow) string {
	var lines []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = renderControl(c)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Center, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderNotification draws a one-off notice the way it would be sent
// privately to the acting user.
func RenderNotification(n dashboard.Notification, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	return Render(dashboard.Panel{
		Title:       n.Severity.Icon() + " " + n.Title,
		Description: n.Body,
		Color:       n.Severity.Color(),
	}, width)
}
