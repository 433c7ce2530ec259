package llm

import (
	"sort"
	"strings"
)

// Top-level keys and the spellings models use for them, in lookup priority.
var (
	headerKeys     = []string{"kopfdaten", "header", "documentheader", "document_header", "kopf", "headerdata"}
	itemsKeys      = []string{"positionen", "lineitems", "line_items", "items", "positions", "lines"}
	confidenceKeys = []string{"confidence", "konfidenz", "confidence_level", "confidencelevel"}
)

// headerAliases maps lowercased synonyms onto the canonical header field.
var headerAliases = aliasTable(map[string][]string{
	"auftragsnummer":      {"ordernumber", "order_number", "orderno", "bestellnummer", "rechnungsnummer", "invoicenumber", "invoice_number", "documentnumber", "number"},
	"datum":               {"date", "issuedate", "issue_date", "orderdate", "order_date", "invoicedate", "invoice_date", "belegdatum", "rechnungsdatum"},
	"lieferant":           {"supplier", "vendor", "seller", "supplier_name", "suppliername"},
	"lieferantAdresse":    {"supplieraddress", "supplier_address", "lieferantenadresse", "vendoraddress", "vendor_address"},
	"kunde":               {"customer", "buyer", "client", "customer_name", "customername"},
	"kundeAdresse":        {"customeraddress", "customer_address", "kundenadresse", "buyeraddress"},
	"gesamtbetragNetto":   {"nettotal", "net_total", "netamount", "net_amount", "netto", "nettobetrag", "subtotal"},
	"mwst":                {"vat", "tax", "vatamount", "vat_amount", "ust", "umsatzsteuer", "mehrwertsteuer"},
	"gesamtbetragBrutto":  {"grosstotal", "gross_total", "grossamount", "gross_amount", "brutto", "bruttobetrag", "total", "totalamount"},
	"waehrung":            {"currency", "currencycode", "currency_code", "währung"},
	"zahlungsbedingungen": {"paymentterms", "payment_terms"},
	"lieferdatum":         {"deliverydate", "delivery_date"},
})

// itemAliases maps lowercased synonyms onto the canonical line item field.
var itemAliases = aliasTable(map[string][]string{
	"position":      {"pos", "positionnumber", "position_number", "line", "linenumber", "line_number", "nr"},
	"artikelnummer": {"articlenumber", "article_number", "artnr", "sku", "itemnumber", "item_number", "productcode"},
	"beschreibung":  {"description", "bezeichnung", "name", "text", "artikel"},
	"menge":         {"quantity", "qty", "anzahl"},
	"einheit":       {"unit", "uom", "me"},
	"einzelpreis":   {"unitprice", "unit_price", "price", "preis", "stückpreis"},
	"rabatt":        {"discount", "discountpercent", "discount_percent"},
	"gesamtpreis":   {"total", "linetotal", "line_total", "amount", "betrag", "gesamt", "totalprice"},
})

// alias is a canonical field name plus the priority of the spelling that
// led to it; lower ranks win when a reply carries several spellings.
type alias struct {
	canonical string
	rank      int
}

func aliasTable(in map[string][]string) map[string]alias {
	out := make(map[string]alias, len(in)*6)
	for canonical, syns := range in {
		out[strings.ToLower(canonical)] = alias{canonical: canonical}
		for i, s := range syns {
			out[s] = alias{canonical: canonical, rank: i + 1}
		}
	}
	return out
}

// sortedKeys returns the keys of m in byte order so ties resolve the same way
// on every call.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pickKey returns the value of the first key in candidates present in m,
// comparing case-insensitively. The key is reported for diagnostics.
func pickKey(m map[string]any, candidates []string) (value any, key string, ok bool) {
	lower := make(map[string]string, len(m))
	for _, k := range sortedKeys(m) {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, dup := lower[lk]; !dup {
			lower[lk] = k
		}
	}
	for _, c := range candidates {
		if orig, found := lower[c]; found {
			return m[orig], orig, true
		}
	}
	return nil, "", false
}

// renameFields rewrites m onto canonical field names using aliases. When
// several keys map to one field the canonical spelling wins, then the
// synonym listed first. Unknown keys are reported and discarded.
func renameFields(m map[string]any, aliases map[string]alias) (out map[string]any, renamed, unknown []string) {
	out = make(map[string]any, len(m))
	from := make(map[string]string, len(m))
	best := make(map[string]int, len(m))
	for _, k := range sortedKeys(m) {
		a, ok := aliases[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if r, taken := best[a.canonical]; taken && r <= a.rank {
			continue
		}
		out[a.canonical] = m[k]
		from[a.canonical] = k
		best[a.canonical] = a.rank
	}
	for _, canonical := range sortedKeys(out) {
		if k := from[canonical]; !strings.EqualFold(k, canonical) {
			renamed = append(renamed, k+"->"+canonical)
		}
	}
	return out, renamed, unknown
}
