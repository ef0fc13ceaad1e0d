package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Completer provides tab completion for the REPL. The first token completes
// over command names and aliases; arguments to the speed command complete
// over a fixed km/h ladder.
type Completer struct {
	registry *Registry

	mu  sync.Mutex
	out io.Writer
}

// NewCompleter builds a completer over the given registry. Candidate lists
// are discarded until SetOutput attaches a terminal.
func NewCompleter(reg *Registry) *Completer {
	return &Completer{registry: reg, out: io.Discard}
}

// SetOutput sets the writer candidate lists are printed to. When this is
// the active terminal, it re-echoes the prompt and pending input after the
// write.
func (c *Completer) SetOutput(out io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = out
}

// Complete satisfies term.Terminal's AutoCompleteCallback contract. A unique
// match completes in place with a trailing space; several matches extend to
// their common prefix or, failing that, print the candidate list.
func (c *Completer) Complete(line string, pos int, key rune) (string, int, bool) {
	if key != '\t' {
		return "", 0, false
	}

	head, tail := line[:pos], line[pos:]
	matches, start := c.candidates(head)
	switch len(matches) {
	case 0:
		return "", 0, false
	case 1:
		completed := head[:start] + matches[0] + " "
		return completed + tail, len(completed), true
	default:
		partial := head[start:]
		if prefix := commonPrefix(matches); len(prefix) > len(partial) {
			completed := head[:start] + prefix
			return completed + tail, len(completed), true
		}
		c.printCandidates(matches)
		return "", 0, false
	}
}

// candidates returns the completion set for the text before the cursor and
// the byte offset of the token being completed. No input means no
// suggestions.
func (c *Completer) candidates(head string) ([]string, int) {
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return nil, 0
	}
	endsWithSpace := strings.HasSuffix(head, " ") || strings.HasSuffix(head, "\t")

	if len(fields) == 1 && !endsWithSpace {
		partial := fields[0]
		return matchPrefix(c.registry.CompletionWords(), partial), len(head) - len(partial)
	}

	switch strings.ToLower(fields[0]) {
	case "speed", "sp":
		partial := ""
		if !endsWithSpace {
			partial = fields[len(fields)-1]
		}
		return matchPrefix(speedLadder(), partial), len(head) - len(partial)
	}
	return nil, 0
}

func (c *Completer) printCandidates(matches []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, strings.Join(matches, "  "))
}

func matchPrefix(words []string, partial string) []string {
	partial = strings.ToLower(partial)
	var matches []string
	for _, w := range words {
		if strings.HasPrefix(w, partial) {
			matches = append(matches, w)
		}
	}
	return matches
}

// speedLadder returns the completion values for target speed, 1.0 through
// 12.0 km/h in 0.5 steps.
func speedLadder() []string {
	values := make([]string, 0, 23)
	for v := 10; v <= 120; v += 5 {
		values = append(values, fmt.Sprintf("%.1f", float64(v)/10))
	}
	return values
}

func commonPrefix(words []string) string {
	if len(words) == 0 {
		return ""
	}
	prefix := words[0]
	for _, w := range words[1:] {
		for !strings.HasPrefix(w, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
