package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/aluiziolira/go-barcode-lookup/projection"
	"github.com/aluiziolira/go-barcode-lookup/session"
)

const separator = "--------------------------------------------------"

// Text prints human-readable results, one block per scan.
type Text struct {
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewText returns a text renderer over w. Close flushes but never closes w.
func NewText(w io.Writer) *Text {
	return &Text{writer: bufio.NewWriter(w)}
}

// Render prints the outcome of snap.
func (t *Text) Render(snap session.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	if snap.Symbol != "" {
		fmt.Fprintf(&b, "Scanned: %s (%s)\n", snap.Symbol, snap.Symbology)
	}

	switch snap.Outcome {
	case session.Match:
		display := snap.Display
		if display == nil {
			return errors.New("render: match without display model")
		}
		if display.HasImage() {
			fmt.Fprintf(&b, "Image: %s\n", display.FirstImage)
		}
		b.WriteString("\n")
		b.WriteString(display.Description)
		b.WriteString("\nOffers:\n")
		if len(display.Offers) == 0 {
			b.WriteString("  No offers available.\n")
		}
		for i, offer := range display.Offers {
			if i > 0 {
				b.WriteString("\n")
			}
			for _, line := range projection.FormatOffer(offer) {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
	case session.NoMatch:
		b.WriteString("Product details not found.\n")
	case session.Failed:
		fmt.Fprintf(&b, "Lookup failed, scan again. (%s)\n", FailureReason(snap))
	case session.Unavailable:
		b.WriteString("Scanner unavailable.\n")
	case session.Cancelled:
		b.WriteString("Scan cancelled.\n")
	default:
		return nil
	}
	b.WriteString(separator + "\n")

	if _, err := t.writer.WriteString(b.String()); err != nil {
		return errors.Wrap(err, "write text result")
	}
	if err := t.writer.Flush(); err != nil {
		return errors.Wrap(err, "flush text writer")
	}
	return nil
}

// Close flushes pending output.
func (t *Text) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.writer.Flush(); err != nil {
		return errors.Wrap(err, "flush text writer")
	}
	return nil
}
