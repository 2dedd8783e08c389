package presenter

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"mousewatch/internal/activity"
)

func transition(to activity.State) activity.Transition {
	from := activity.StateInactive
	if to == activity.StateInactive {
		from = activity.StateActive
	}
	return activity.Transition{From: from, To: to, At: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestPrintText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatText, false)

	p.Print(transition(activity.StateActive))
	p.Print(transition(activity.StateInactive))

	if got := buf.String(); got != "ACTIVE\nINACTIVE\n" {
		t.Errorf("output = %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON, false)

	p.Print(transition(activity.StateActive))

	var got struct {
		State string    `json:"state"`
		At    time.Time `json:"at"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if got.State != "ACTIVE" {
		t.Errorf("state = %q", got.State)
	}
	if got.At.IsZero() {
		t.Error("timestamp missing")
	}
}

func TestQuietSuppressesOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatText, true)

	p.Print(transition(activity.StateActive))

	if buf.Len() != 0 {
		t.Errorf("quiet printer wrote %q", buf.String())
	}

	p.SetQuiet(false)
	p.Print(transition(activity.StateInactive))
	if got := buf.String(); got != "INACTIVE\n" {
		t.Errorf("output after unquiet = %q", got)
	}
}

func TestRunDrainsChannel(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatText, false)

	ch := make(chan activity.Transition, 2)
	ch <- transition(activity.StateActive)
	ch <- transition(activity.StateInactive)
	close(ch)

	p.Run(context.Background(), ch)

	if got := buf.String(); got != "ACTIVE\nINACTIVE\n" {
		t.Errorf("output = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("empty format: %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("json format: %v, %v", f, err)
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
