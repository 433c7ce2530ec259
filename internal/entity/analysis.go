package entity

import (
	"github.com/joseph-ayodele/order-analyzer/constants"
)

// DocumentHeader holds the order/invoice header. Every field is nullable;
// nil means the value was not found in the document.
type DocumentHeader struct {
	OrderNumber     *string  `json:"auftragsnummer"`
	Date            *string  `json:"datum"` // YYYY-MM-DD
	Supplier        *string  `json:"lieferant"`
	SupplierAddress *string  `json:"lieferantAdresse"`
	Customer        *string  `json:"kunde"`
	CustomerAddress *string  `json:"kundeAdresse"`
	NetTotal        *float64 `json:"gesamtbetragNetto"`
	VAT             *float64 `json:"mwst"`
	GrossTotal      *float64 `json:"gesamtbetragBrutto"`
	Currency        *string  `json:"waehrung"` // ISO 4217
	PaymentTerms    *string  `json:"zahlungsbedingungen"`
	DeliveryDate    *string  `json:"lieferdatum"` // YYYY-MM-DD
}

// LineItem is one position of the document. Positions are not guaranteed
// to be unique or contiguous.
type LineItem struct {
	Position      int      `json:"position"`
	ArticleNumber *string  `json:"artikelnummer"`
	Description   string   `json:"beschreibung"`
	Quantity      float64  `json:"menge"`
	Unit          *string  `json:"einheit"`
	UnitPrice     float64  `json:"einzelpreis"`
	Discount      *float64 `json:"rabatt"` // percent
	LineTotal     float64  `json:"gesamtpreis"`
}

// AnalysisResult is the outcome of analyzing one document.
type AnalysisResult struct {
	Header     DocumentHeader       `json:"kopfdaten"`
	LineItems  []LineItem           `json:"positionen"`
	RawText    string               `json:"rawText"`
	Confidence constants.Confidence `json:"confidence"`
}

// NewAnalysisResult builds a result whose item list is never nil, so it
// always encodes as a JSON array.
func NewAnalysisResult(header DocumentHeader, items []LineItem, conf constants.Confidence, rawText string) *AnalysisResult {
	if items == nil {
		items = []LineItem{}
	}
	if conf == "" {
		conf = constants.ConfidenceUnknown
	}
	return &AnalysisResult{
		Header:     header,
		LineItems:  items,
		RawText:    rawText,
		Confidence: conf,
	}
}

// LineTotalSum adds up every line total, duplicates included.
func (r *AnalysisResult) LineTotalSum() float64 {
	var sum float64
	for _, it := range r.LineItems {
		sum += it.LineTotal
	}
	return sum
}
