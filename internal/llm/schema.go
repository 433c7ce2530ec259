package llm

// HeaderJSONSchema is the shape of "kopfdaten" after normalization.
// Every field is present and nullable.
func HeaderJSONSchema() map[string]any {
	props := map[string]any{
		"auftragsnummer":      nullableString(),
		"datum":               nullableString(),
		"lieferant":           nullableString(),
		"lieferantAdresse":    nullableString(),
		"kunde":               nullableString(),
		"kundeAdresse":        nullableString(),
		"gesamtbetragNetto":   nullableNumber(),
		"mwst":                nullableNumber(),
		"gesamtbetragBrutto":  nullableNumber(),
		"waehrung":            nullableString(),
		"zahlungsbedingungen": nullableString(),
		"lieferdatum":         nullableString(),
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// LineItemJSONSchema is the shape of one "positionen" entry after normalization.
// Items that do not match are dropped rather than failing the whole response.
func LineItemJSONSchema() map[string]any {
	props := map[string]any{
		"position":      map[string]any{"type": "integer", "minimum": 1},
		"artikelnummer": nullableString(),
		"beschreibung":  map[string]any{"type": "string", "minLength": 1},
		"menge":         map[string]any{"type": "number"},
		"einheit":       nullableString(),
		"einzelpreis":   map[string]any{"type": "number"},
		"rabatt":        nullableNumber(),
		"gesamtpreis":   map[string]any{"type": "number"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"position", "beschreibung", "menge", "einzelpreis", "gesamtpreis"},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func nullableNumber() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}
