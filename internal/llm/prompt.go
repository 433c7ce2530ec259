package llm

import (
	"strings"
)

// promptHeader describes the expected document field by field. It is followed
// by the extracted text, unmodified.
const promptHeader = `Du bist ein Experte für die Analyse von Auftragsdokumenten, Bestellungen und Rechnungen.

Analysiere den folgenden Text aus einem PDF-Dokument und extrahiere die Informationen in ein strukturiertes JSON-Objekt.

WICHTIG: Antworte ausschließlich mit einem einzigen validen JSON-Objekt. Kein erklärender Text, keine Einleitung, kein Markdown und keine Codeblöcke.

Das JSON-Objekt muss genau diese Struktur haben:

{
  "kopfdaten": {
    "auftragsnummer": "string oder null",
    "datum": "string (Format: YYYY-MM-DD) oder null",
    "lieferant": "string oder null",
    "lieferantAdresse": "string oder null",
    "kunde": "string oder null",
    "kundeAdresse": "string oder null",
    "gesamtbetragNetto": Zahl oder null,
    "mwst": Zahl oder null,
    "gesamtbetragBrutto": Zahl oder null,
    "waehrung": "ISO-4217-Code (z.B. EUR, USD) oder null",
    "zahlungsbedingungen": "string oder null",
    "lieferdatum": "string (Format: YYYY-MM-DD) oder null"
  },
  "positionen": [
    {
      "position": Ganzzahl ab 1,
      "artikelnummer": "string oder null",
      "beschreibung": "string (Pflichtfeld)",
      "menge": Zahl,
      "einheit": "string (z.B. Stück, kg) oder null",
      "einzelpreis": Zahl,
      "rabatt": Zahl in Prozent oder null,
      "gesamtpreis": Zahl
    }
  ],
  "confidence": "high | medium | low"
}

Regeln:
- Extrahiere alle verfügbaren Informationen aus dem Dokument.
- Verwende null für Felder, die im Dokument nicht vorkommen. Erfinde keine Werte.
- Beträge und Mengen sind reine Zahlen mit Punkt als Dezimaltrennzeichen, ohne Währungssymbol und ohne Tausendertrennzeichen.
- Datumsangaben immer im Format YYYY-MM-DD.
- Gibt es keine Positionen, liefere "positionen": [].
- "confidence" gibt an, wie sicher du dir bei der gesamten Extraktion bist.

PDF-Text:
`

// BuildPrompt returns the instruction template followed verbatim by text.
// It is deterministic and never truncates the text.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.Grow(len(promptHeader) + len(text))
	b.WriteString(promptHeader)
	b.WriteString(text)
	return b.String()
}
