// Package setup implements the interactive "init" wizard that writes the
// listingapp configuration file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// Prompter reads answers line by line from r and writes prompts to w.
// Tests inject buffers for deterministic input.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
	fd      int // terminal file descriptor of r, or -1
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	fd := -1
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Prompter{scanner: bufio.NewScanner(r), w: w, fd: fd}
}

// line reads the next trimmed answer. ok is false once input is exhausted.
func (p *Prompter) line() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

func (p *Prompter) label(label, defaultVal string) {
	if defaultVal != "" {
		_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		return
	}
	_, _ = fmt.Fprintf(p.w, "  %s: ", label)
}

// String prompts for a text value. Enter keeps defaultVal. An empty
// defaultVal makes the field required and the prompt repeats until a value
// is given or input runs out.
func (p *Prompter) String(label, defaultVal string) string {
	for {
		p.label(label, defaultVal)

		val, ok := p.line()
		if !ok {
			return defaultVal
		}
		if val == "" {
			if defaultVal != "" {
				return defaultVal
			}
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Confirm asks a yes/no question. defaultYes decides what Enter means.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	answer, ok := p.line()
	if !ok || answer == "" {
		return defaultYes
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// Secret prompts for an optional sensitive value such as a token. Input is
// not echoed when reading from a terminal. Enter returns "".
func (p *Prompter) Secret(label string) string {
	_, _ = fmt.Fprintf(p.w, "  %s (optional): ", label)

	if p.fd >= 0 {
		b, err := term.ReadPassword(p.fd)
		_, _ = fmt.Fprintln(p.w)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}

	val, _ := p.line()
	return val
}

// Int prompts for a whole number in [minVal, maxVal]. Enter keeps defaultVal.
func (p *Prompter) Int(label string, defaultVal, minVal, maxVal int) int {
	for {
		p.label(label, strconv.Itoa(defaultVal))

		val, ok := p.line()
		if !ok || val == "" {
			return defaultVal
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < minVal || n > maxVal {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between %d and %d)\n", minVal, maxVal)
			continue
		}
		return n
	}
}

// Duration prompts for a Go duration such as "30s" or "5m" in [minVal, maxVal].
// Enter keeps defaultVal.
func (p *Prompter) Duration(label string, defaultVal, minVal, maxVal time.Duration) time.Duration {
	for {
		p.label(label, defaultVal.String())

		val, ok := p.line()
		if !ok || val == "" {
			return defaultVal
		}
		d, err := time.ParseDuration(val)
		if err != nil || d < minVal || d > maxVal {
			_, _ = fmt.Fprintf(p.w, "  (enter a duration between %v and %v, e.g. 5m)\n", minVal, maxVal)
			continue
		}
		return d
	}
}

// Select presents a numbered list and returns the zero-based index picked.
func (p *Prompter) Select(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	_, _ = fmt.Fprintf(p.w, "  %s:\n", label)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.w, "    %d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprintf(p.w, "  Choice [1-%d]: ", len(options))

		val, ok := p.line()
		if !ok {
			return -1, fmt.Errorf("no input")
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between 1 and %d)\n", len(options))
			continue
		}
		return n - 1, nil
	}
}
