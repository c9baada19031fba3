package render

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/aluiziolira/go-barcode-lookup/models"
	"github.com/aluiziolira/go-barcode-lookup/session"
)

// jsonRecord is one JSONL line.
type jsonRecord struct {
	Session   string               `json:"session"`
	Symbol    string               `json:"symbol"`
	Symbology models.Symbology     `json:"symbology,omitempty"`
	Outcome   string               `json:"outcome"`
	Reason    string               `json:"reason,omitempty"`
	Product   *models.DisplayModel `json:"product,omitempty"`
	ScannedAt time.Time            `json:"scanned_at"`
}

// JSON writes newline-delimited JSON results.
type JSON struct {
	closer  io.Closer
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSON returns a JSONL renderer over w.
func NewJSON(w io.Writer) *JSON {
	buffer := bufio.NewWriter(w)
	return &JSON{
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}
}

// NewJSONFile creates filename, and its directory, for JSONL output.
func NewJSONFile(filename string) (*JSON, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	j := NewJSON(f)
	j.closer = f
	return j, nil
}

// Render appends one line for snap.
func (j *JSON) Render(snap session.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := jsonRecord{
		Session:   snap.Session,
		Symbol:    snap.Symbol,
		Symbology: snap.Symbology,
		Outcome:   snap.Outcome.String(),
		Reason:    FailureReason(snap),
		Product:   snap.Display,
		ScannedAt: snap.At.UTC(),
	}
	if err := j.encoder.Encode(rec); err != nil {
		return errors.Wrap(err, "encode json record")
	}
	if err := j.writer.Flush(); err != nil {
		return errors.Wrap(err, "flush json writer")
	}
	return nil
}

// Close flushes buffers and closes the underlying file, if any.
func (j *JSON) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return errors.Wrap(err, "flush json writer")
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
