package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/and161185/notekeeper/internal/api"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func success(w io.Writer, format string, a ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", a...)
}

func tsString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// printNoteList renders one line per note, most recently updated first as the server returns them.
func printNoteList(w io.Writer, notes []api.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes yet. Add one with: notes add --content TEXT")
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%s\n", boldColor.Sprint("ID"), boldColor.Sprint("UPDATED"), boldColor.Sprint("TITLE"))
	for _, n := range notes {
		title := n.Title
		if n.ContentUnavailable {
			title += " " + warningColor.Sprint("(unreadable)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, dimColor.Sprint(tsString(n.UpdatedAt)), title)
	}
}

func printNote(w io.Writer, n api.Note) {
	fmt.Fprintln(w, boldColor.Sprint(n.Title))
	fmt.Fprintln(w, dimColor.Sprintf("id %s  created %s  updated %s", n.ID, tsString(n.CreatedAt), tsString(n.UpdatedAt)))
	fmt.Fprintln(w)
	if n.ContentUnavailable {
		warningColor.Fprintln(w, n.Content)
		return
	}
	fmt.Fprintln(w, strings.TrimRight(n.Content, "\n"))
}
