package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/order-analyzer/constants"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
)

// Parsed is the validated content of a model reply.
type Parsed struct {
	Header     entity.DocumentHeader
	Items      []entity.LineItem
	Confidence constants.Confidence
	// Dropped lists every value that was discarded or rewritten on the way,
	// for logging.
	Dropped []string
}

// ParseResponse turns a raw completion into a validated document.
//
// The reply is accepted as-is when it is a single JSON object. Otherwise the
// region from the first '{' to the last '}' that closes it is parsed, which
// recovers objects wrapped in prose or code fences. The object must carry a
// header; a missing or malformed item list becomes empty, and items that do
// not validate are dropped individually.
func ParseResponse(raw string) (*Parsed, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, &MalformedResponseError{Raw: raw, Reason: "no json object", Cause: err}
	}

	s, err := schemas()
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	out := &Parsed{Items: []entity.LineItem{}}

	headerVal, _, ok := pickKey(obj, headerKeys)
	if !ok {
		return nil, &MalformedResponseError{Raw: raw, Reason: "missing header object"}
	}
	switch h := headerVal.(type) {
	case nil:
		out.Dropped = append(out.Dropped, "kopfdaten(null)")
	case map[string]any:
		hdr, dropped, err := buildHeader(s, h)
		if err != nil {
			return nil, &MalformedResponseError{Raw: raw, Reason: "invalid header object", Cause: err}
		}
		out.Header = hdr
		out.Dropped = append(out.Dropped, dropped...)
	default:
		return nil, &MalformedResponseError{Raw: raw, Reason: fmt.Sprintf("header has type %T", headerVal)}
	}

	itemsVal, key, ok := pickKey(obj, itemsKeys)
	switch items := itemsVal.(type) {
	case []any:
		for i, rawItem := range items {
			m, isObj := rawItem.(map[string]any)
			if !isObj {
				out.Dropped = append(out.Dropped, fmt.Sprintf("positionen[%d](type)", i))
				continue
			}
			item, dropped, err := buildItem(s, i, m)
			out.Dropped = append(out.Dropped, dropped...)
			if err != nil {
				out.Dropped = append(out.Dropped, fmt.Sprintf("positionen[%d](invalid)", i))
				continue
			}
			out.Items = append(out.Items, item)
		}
	default:
		if ok && itemsVal != nil {
			out.Dropped = append(out.Dropped, key+"(type)")
		}
	}

	out.Confidence = constants.ConfidenceUnknown
	if confVal, _, ok := pickKey(obj, confidenceKeys); ok {
		if cs, isStr := confVal.(string); isStr {
			out.Confidence, _ = constants.CanonicalizeConfidence(cs)
		}
	}
	return out, nil
}

// decodeObject returns the JSON object held in raw, either directly or from
// the brace-delimited region inside it.
func decodeObject(raw string) (map[string]any, error) {
	if obj, err := decodeStrict(raw); err == nil {
		return obj, nil
	}
	greedy, first, ok := ObjectRegion(raw)
	if !ok {
		return nil, errors.New("no balanced braces")
	}
	obj, err := decodeStrict(greedy)
	if err == nil {
		return obj, nil
	}
	if first != greedy {
		if obj, ferr := decodeStrict(first); ferr == nil {
			return obj, nil
		}
	}
	return nil, err
}

// decodeStrict decodes s as exactly one JSON object, keeping numbers lossless.
func decodeStrict(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after json value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("json value is %T, not an object", v)
	}
	return obj, nil
}

// ObjectRegion scans s once, tracking brace depth and, inside a region, JSON
// string literals. greedy spans from the first '{' to the last '}' that
// brings the depth back to zero; first spans to the first such '}'.
// ok is false when no region ever closes. Runs in O(len(s)).
func ObjectRegion(s string) (greedy, first string, ok bool) {
	start, firstEnd, lastEnd := -1, -1, -1
	depth := 0
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if depth > 0 && inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if firstEnd < 0 {
					firstEnd = i
				}
				lastEnd = i
			}
		}
	}
	if start < 0 || lastEnd < 0 {
		return "", "", false
	}
	return s[start : lastEnd+1], s[start : firstEnd+1], true
}

func buildHeader(s *compiledSchemas, raw map[string]any) (entity.DocumentHeader, []string, error) {
	fields, renamed, unknown := renameFields(raw, headerAliases)
	dropped := append(renamed, suffixAll(unknown, "(unknown)")...)

	doc := make(map[string]any, 12)
	for _, k := range []string{"auftragsnummer", "lieferant", "lieferantAdresse", "kunde", "kundeAdresse", "zahlungsbedingungen"} {
		doc[k] = stringField(fields, k, &dropped)
	}
	for _, k := range []string{"datum", "lieferdatum"} {
		v := stringField(fields, k, &dropped)
		if str, ok := v.(string); ok {
			v = normalizeDate(str)
		}
		doc[k] = v
	}
	cur := stringField(fields, "waehrung", &dropped)
	if str, ok := cur.(string); ok {
		cur = normalizeCurrency(str)
	}
	doc["waehrung"] = cur
	for _, k := range []string{"gesamtbetragNetto", "mwst", "gesamtbetragBrutto"} {
		doc[k] = numberField(fields, k, &dropped)
	}

	var hdr entity.DocumentHeader
	if err := validateInto(s.header, doc, &hdr); err != nil {
		return entity.DocumentHeader{}, dropped, err
	}
	return hdr, dropped, nil
}

func buildItem(s *compiledSchemas, idx int, raw map[string]any) (entity.LineItem, []string, error) {
	fields, _, _ := renameFields(raw, itemAliases)
	var dropped []string
	prefix := fmt.Sprintf("positionen[%d].", idx)

	doc := make(map[string]any, 8)
	pos, ok := coercePosition(fields["position"])
	if !ok {
		pos = idx + 1
		if fields["position"] != nil {
			dropped = append(dropped, prefix+"position(ordinal)")
		}
	}
	doc["position"] = pos

	var fieldDrops []string
	for _, k := range []string{"artikelnummer", "beschreibung", "einheit"} {
		doc[k] = stringField(fields, k, &fieldDrops)
	}
	for _, k := range []string{"menge", "einzelpreis", "rabatt", "gesamtpreis"} {
		doc[k] = numberField(fields, k, &fieldDrops)
	}
	dropped = append(dropped, prefixAll(fieldDrops, prefix)...)

	var item entity.LineItem
	if err := validateInto(s.item, doc, &item); err != nil {
		return entity.LineItem{}, dropped, err
	}
	return item, dropped, nil
}

func stringField(fields map[string]any, k string, dropped *[]string) any {
	v, ok := coerceString(fields[k])
	if !ok {
		*dropped = append(*dropped, k+"(type)")
	}
	return v
}

func numberField(fields map[string]any, k string, dropped *[]string) any {
	v, ok := coerceNumber(fields[k])
	if !ok {
		*dropped = append(*dropped, k+"(nan)")
	}
	return v
}

// validateInto checks doc against schema and decodes it into dst.
func validateInto(schema *jsonschema.Schema, doc map[string]any, dst any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := ValidateJSON(schema, b); err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func suffixAll(in []string, suffix string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = s + suffix
	}
	return out
}

func prefixAll(in []string, prefix string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = prefix + s
	}
	return out
}
