// Package diag implements Bog's append-only diagnostics list, shared by the
// tokenizer, parser, compiler and VM, and its rendering to a human-readable
// sink.
//
// Grounded on the teacher's runtime/parser/errors.go ParseError (message +
// token + suggestions) generalized into the single ordered err/trace/note
// list spec.md §3 describes.
package diag

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Kind distinguishes the three entry classes spec.md §3 names.
type Kind uint8

const (
	Err Kind = iota
	Trace
	Note
)

func (k Kind) String() string {
	switch k {
	case Err:
		return "error"
	case Trace:
		return "trace"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Entry is one rendered diagnostic with its source location.
type Entry struct {
	Kind    Kind
	Message string
	Offset  int
}

// List is the append-only diagnostics sequence shared across pipeline
// stages. The zero value is ready to use.
type List struct {
	Entries []Entry
}

func (l *List) Err(offset int, format string, args ...any) {
	l.Entries = append(l.Entries, Entry{Kind: Err, Message: fmt.Sprintf(format, args...), Offset: offset})
}

func (l *List) Trace(offset int, format string, args ...any) {
	l.Entries = append(l.Entries, Entry{Kind: Trace, Message: fmt.Sprintf(format, args...), Offset: offset})
}

func (l *List) Note(offset int, format string, args ...any) {
	l.Entries = append(l.Entries, Entry{Kind: Note, Message: fmt.Sprintf(format, args...), Offset: offset})
}

func (l *List) Empty() bool { return len(l.Entries) == 0 }

// HasErr reports whether any Err-kind entry has been recorded.
func (l *List) HasErr() bool {
	for _, e := range l.Entries {
		if e.Kind == Err {
			return true
		}
	}
	return false
}

// Suggest returns the closest match to word among candidates using fuzzy
// string matching, or "" if nothing is close enough to be useful. Used to
// populate the "did you mean" hint on unknown-native errors.
func Suggest(word string, candidates []string) string {
	if word == "" || len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(word, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	best := ranks[0]
	// A distance more than two past the word's own length is not a useful
	// suggestion (e.g. matching "x" against "completely_unrelated").
	if best.Distance > len(word)+2 {
		return ""
	}
	return best.Target
}

// lineCol computes the 1-based line and column for a byte offset into src.
func lineCol(src []byte, offset int) (line, col int) {
	line, col = 1, 1
	if offset > len(src) {
		offset = len(src)
	}
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Render writes every entry to w as "filename:line:col: kind: message",
// deriving line/column from the stored byte offset against src.
func Render(w io.Writer, filename string, src []byte, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		line, col := lineCol(src, e.Offset)
		if _, err := fmt.Fprintf(bw, "%s:%d:%d: %s: %s\n", filename, line, col, e.Kind, e.Message); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// RenderString is a convenience wrapper around Render for callers that want
// the rendered diagnostics as a string (e.g. for embedding in a Go error).
func RenderString(filename string, src []byte, entries []Entry) string {
	var buf bytes.Buffer
	_ = Render(&buf, filename, src, entries)
	return buf.String()
}
