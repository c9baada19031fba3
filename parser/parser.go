// Package parser decodes lookup API payloads and normalises scanned symbols.
package parser

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/go-faster/errors"

	"github.com/aluiziolira/go-barcode-lookup/models"
)

// DecodeResponse parses a lookup API body into the response envelope.
func DecodeResponse(body []byte) (*models.LookupResponse, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty response body")
	}

	var resp models.LookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode lookup response")
	}
	for i := range resp.Items {
		if err := ValidateRecord(&resp.Items[i]); err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
	}
	return &resp, nil
}

// ValidateRecord ensures the record carries its required identity.
func ValidateRecord(r *models.ProductRecord) error {
	if r == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(r.EAN) == "" {
		return errors.New("record missing ean")
	}
	return nil
}

// NormalizeSymbol strips whitespace and control characters scanners append.
func NormalizeSymbol(symbol string) string {
	return strings.TrimFunc(symbol, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
