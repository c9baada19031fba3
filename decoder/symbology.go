package decoder

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-barcode-lookup/models"
	"github.com/aluiziolira/go-barcode-lookup/parser"
)

// ParseSymbol splits an optional AIM symbology identifier (e.g. "]E0") from
// the payload. Without an identifier the symbology is inferred from shape.
func ParseSymbol(raw string) (string, models.Symbology) {
	payload, symbology, _ := parseSymbol(raw)
	return payload, symbology
}

// parseSymbol also reports whether the symbology came from an AIM
// identifier rather than from the payload's shape.
func parseSymbol(raw string) (string, models.Symbology, bool) {
	raw = parser.NormalizeSymbol(raw)
	if len(raw) >= 3 && raw[0] == ']' {
		payload := parser.NormalizeSymbol(raw[3:])
		return payload, aimSymbology(raw[1], raw[2], payload), true
	}
	return raw, inferSymbology(raw), false
}

// freeText lists the symbologies that can carry arbitrary text.
var freeText = []models.Symbology{models.SymbologyQR, models.SymbologyCode128, models.SymbologyUnknown}

func aimSymbology(code, modifier byte, payload string) models.Symbology {
	switch code {
	case 'E':
		if modifier == '4' {
			return models.SymbologyEAN8
		}
		if len(payload) == 12 {
			return models.SymbologyUPCA
		}
		return models.SymbologyEAN13
	case 'C':
		return models.SymbologyCode128
	case 'Q':
		return models.SymbologyQR
	default:
		return models.SymbologyUnknown
	}
}

func inferSymbology(payload string) models.Symbology {
	if payload == "" || strings.IndexFunc(payload, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return models.SymbologyUnknown
	}
	switch len(payload) {
	case 13:
		return models.SymbologyEAN13
	case 12:
		return models.SymbologyUPCA
	case 8:
		return models.SymbologyEAN8
	default:
		return models.SymbologyUnknown
	}
}

// ParseSymbologies converts configuration names into symbology values.
func ParseSymbologies(names []string) ([]models.Symbology, error) {
	out := make([]models.Symbology, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		switch sym := models.Symbology(name); sym {
		case models.SymbologyQR, models.SymbologyEAN13, models.SymbologyEAN8,
			models.SymbologyUPCA, models.SymbologyCode128, models.SymbologyUnknown:
			out = append(out, sym)
		default:
			return nil, &UnknownSymbologyError{Name: name}
		}
	}
	return out, nil
}

// UnknownSymbologyError reports an unsupported symbology name.
type UnknownSymbologyError struct {
	Name string
}

func (e *UnknownSymbologyError) Error() string {
	return fmt.Sprintf("unknown symbology %q", e.Name)
}
