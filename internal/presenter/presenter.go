// Package presenter renders activity transitions for the user.
//
// The default surface is one line per transition on stdout: "ACTIVE" or
// "INACTIVE". Quiet mode suppresses it entirely; JSON format emits one
// object per line for machine consumers.
package presenter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"mousewatch/internal/activity"
)

// Format selects the output rendering.
type Format int

const (
	// FormatText prints the bare state name, the original surface.
	FormatText Format = iota
	// FormatJSON prints one JSON object per transition.
	FormatJSON
)

// ParseFormat parses a format name from config or flags.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("presenter: unknown output format %q", s)
	}
}

// line is the JSON shape emitted per transition.
type line struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// Printer writes transitions to w.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	quiet  bool
}

// NewPrinter creates a printer. A quiet printer swallows everything.
func NewPrinter(w io.Writer, format Format, quiet bool) *Printer {
	return &Printer{w: w, format: format, quiet: quiet}
}

// SetQuiet toggles quiet mode; used for config hot reload.
func (p *Printer) SetQuiet(quiet bool) {
	p.mu.Lock()
	p.quiet = quiet
	p.mu.Unlock()
}

// Run consumes transitions until the channel closes or ctx is cancelled.
func (p *Printer) Run(ctx context.Context, transitions <-chan activity.Transition) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-transitions:
			if !ok {
				return
			}
			p.Print(tr)
		}
	}
}

// Print renders one transition. Write errors are ignored: a broken pipe on
// the display surface must not disturb detection.
func (p *Printer) Print(tr activity.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.quiet {
		return
	}
	switch p.format {
	case FormatJSON:
		data, err := json.Marshal(line{State: tr.To.String(), At: tr.At})
		if err != nil {
			return
		}
		fmt.Fprintln(p.w, string(data))
	default:
		fmt.Fprintln(p.w, tr.To.String())
	}
}
