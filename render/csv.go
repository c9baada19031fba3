package render

import (
	"encoding/csv"
	"io"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/aluiziolira/go-barcode-lookup/models"
	"github.com/aluiziolira/go-barcode-lookup/session"
)

var csvHeader = []string{
	"session", "scanned_at", "symbol", "symbology", "outcome", "reason",
	"merchant", "title", "price", "currency", "shipping", "condition", "link", "updated_at",
}

// CSV writes one row per offer. Scans without offers get a single row with
// empty offer columns.
type CSV struct {
	closer io.Closer
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSV returns a CSV renderer over w and writes the header row.
func NewCSV(w io.Writer) (*CSV, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return nil, errors.Wrap(err, "write csv header")
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Wrap(err, "flush csv header")
	}
	return &CSV{writer: writer}, nil
}

// NewCSVFile creates filename, and its directory, for CSV output.
func NewCSVFile(filename string) (*CSV, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	c, err := NewCSV(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

// Render appends the rows for snap.
func (c *CSV) Render(snap session.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := []string{
		snap.Session,
		snap.At.UTC().Format(time.RFC3339),
		snap.Symbol,
		string(snap.Symbology),
		snap.Outcome.String(),
		FailureReason(snap),
	}

	var offers []models.Offer
	if snap.Display != nil {
		offers = snap.Display.Offers
	}
	if len(offers) == 0 {
		if err := c.writer.Write(append(prefix, make([]string, len(csvHeader)-len(prefix))...)); err != nil {
			return errors.Wrap(err, "write csv record")
		}
	}
	for _, offer := range offers {
		record := append(append([]string(nil), prefix...),
			offer.Merchant,
			offer.Title,
			offer.Price.StringFixed(2),
			deref(offer.Currency),
			offer.Shipping,
			offer.Condition,
			offer.Link,
			offer.Updated().Format(time.RFC3339),
		)
		if err := c.writer.Write(record); err != nil {
			return errors.Wrap(err, "write csv record")
		}
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return errors.Wrap(err, "flush csv records")
	}
	return nil
}

// Close flushes and closes the underlying file, if any.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return errors.Wrap(err, "flush csv writer")
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
