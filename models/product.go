// Package models defines the data structures exchanged by the scan-lookup pipeline.
package models

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Symbology names the barcode family a payload was read from.
type Symbology string

const (
	SymbologyQR      Symbology = "qr"
	SymbologyEAN13   Symbology = "ean13"
	SymbologyEAN8    Symbology = "ean8"
	SymbologyUPCA    Symbology = "upca"
	SymbologyCode128 Symbology = "code128"
	SymbologyUnknown Symbology = "unknown"
)

// SymbolEvent is one decode event emitted by a capture session.
type SymbolEvent struct {
	Payload   string
	Symbology Symbology
}

// LookupResponse is the envelope returned by the product lookup API.
type LookupResponse struct {
	Code    string          `json:"code"`
	Message *string         `json:"message,omitempty"`
	Total   int             `json:"total"`
	Offset  int             `json:"offset"`
	Items   []ProductRecord `json:"items"`
}

// UnmarshalJSON rejects bodies that are not a lookup envelope: both code and
// items must be present.
func (r *LookupResponse) UnmarshalJSON(data []byte) error {
	type plain LookupResponse
	var raw struct {
		plain
		Code  *string          `json:"code"`
		Items *[]ProductRecord `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Code == nil {
		return errors.New("lookup response missing code")
	}
	if raw.Items == nil {
		return errors.New("lookup response missing items")
	}
	*r = LookupResponse(raw.plain)
	r.Code = *raw.Code
	r.Items = *raw.Items
	return nil
}

// ProductRecord is one matched product. Pointer and NullDecimal fields are
// nil/invalid when the API omitted them.
type ProductRecord struct {
	EAN  string  `json:"ean"`
	UPC  *string `json:"upc,omitempty"`
	ASIN *string `json:"asin,omitempty"`
	ELID *string `json:"elid,omitempty"`

	Title       string  `json:"title"`
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	Color       string  `json:"color"`
	Size        string  `json:"size"`
	Dimension   *string `json:"dimension,omitempty"`
	Weight      string  `json:"weight"`
	Category    *string `json:"category,omitempty"`

	Currency             *string             `json:"currency,omitempty"`
	LowestRecordedPrice  decimal.NullDecimal `json:"lowest_recorded_price"`
	HighestRecordedPrice decimal.NullDecimal `json:"highest_recorded_price"`

	Images []string `json:"images,omitempty"`
	Offers []Offer  `json:"offers,omitempty"`
}

// UnmarshalJSON rejects records without an ean key.
func (p *ProductRecord) UnmarshalJSON(data []byte) error {
	type plain ProductRecord
	var raw struct {
		plain
		EAN *string `json:"ean"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.EAN == nil {
		return errors.New("product record missing ean")
	}
	*p = ProductRecord(raw.plain)
	p.EAN = *raw.EAN
	return nil
}

// Offer is one merchant's listing for a product.
type Offer struct {
	Merchant     string          `json:"merchant"`
	Domain       string          `json:"domain"`
	Title        string          `json:"title"`
	Currency     *string         `json:"currency,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Shipping     string          `json:"shipping"`
	Condition    string          `json:"condition"`
	Availability *string         `json:"availability,omitempty"`
	Link         string          `json:"link"`
	UpdatedAt    int64           `json:"updated_t"`
}

// UnmarshalJSON rejects offers without a price or link key.
func (o *Offer) UnmarshalJSON(data []byte) error {
	type plain Offer
	var raw struct {
		plain
		Price *decimal.Decimal `json:"price"`
		Link  *string          `json:"link"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Price == nil {
		return errors.New("offer missing price")
	}
	if raw.Link == nil {
		return errors.New("offer missing link")
	}
	*o = Offer(raw.plain)
	o.Price = *raw.Price
	o.Link = *raw.Link
	return nil
}

// Updated returns the offer's last update time.
func (o Offer) Updated() time.Time {
	return time.Unix(o.UpdatedAt, 0).UTC()
}

// DisplayModel is the UI-ready projection of a matched product.
type DisplayModel struct {
	Description string  `json:"description"`
	FirstImage  string  `json:"first_image,omitempty"`
	Offers      []Offer `json:"offers"`
}

// HasImage reports whether a representative image is available.
func (d DisplayModel) HasImage() bool {
	return d.FirstImage != ""
}
