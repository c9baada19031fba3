// Package projection turns product records into display-ready models.
package projection

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-barcode-lookup/models"
)

const notAvailable = "N/A"

// Project maps a record onto the subset the display surface renders.
func Project(record models.ProductRecord) models.DisplayModel {
	display := models.DisplayModel{
		Description: Describe(record),
	}
	if len(record.Images) > 0 && record.Images[0] != "" {
		display.FirstImage = record.Images[0]
	}
	if len(record.Offers) > 0 {
		display.Offers = make([]models.Offer, len(record.Offers))
		copy(display.Offers, record.Offers)
	}
	return display
}

// Describe builds the multi-line product description.
func Describe(record models.ProductRecord) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}

	line("Title", record.Title)
	line("Brand", record.Brand)
	line("Model", record.Model)
	line("UPC", valueOr(record.UPC, notAvailable))
	line("EAN", record.EAN)
	line("Description", record.Description)
	if v := valueOr(record.Dimension, ""); v != "" {
		line("Dimension", v)
	}
	line("Weight", record.Weight)
	if v := valueOr(record.Category, ""); v != "" {
		line("Category", v)
	}

	currency := valueOr(record.Currency, "")
	if currency != "" {
		line("Currency", currency)
	}
	if record.LowestRecordedPrice.Valid {
		line("Lowest Recorded Price", priceText(currency, record.LowestRecordedPrice.Decimal))
	}
	if record.HighestRecordedPrice.Valid {
		line("Highest Recorded Price", priceText(currency, record.HighestRecordedPrice.Decimal))
	}

	return b.String()
}

// FormatOffer renders one offer as display lines.
func FormatOffer(offer models.Offer) []string {
	lines := []string{
		offer.Merchant + ": " + offer.Title,
		"Price: " + strings.TrimSpace(offer.Price.StringFixed(2)+" "+valueOr(offer.Currency, "")),
	}
	if offer.Shipping != "" {
		lines = append(lines, "Shipping: "+offer.Shipping)
	}
	lines = append(lines,
		"Condition: "+offer.Condition,
		"Link: "+offer.Link,
	)
	return lines
}

func priceText(currency string, price decimal.Decimal) string {
	if currency == "" {
		return price.String()
	}
	return currency + " " + price.String()
}

// valueOr treats an empty string like a missing value.
func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
