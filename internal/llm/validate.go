package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type compiledSchemas struct {
	header *jsonschema.Schema
	item   *jsonschema.Schema
}

// schemas compiles the static schemas once per process.
var schemas = sync.OnceValues(func() (*compiledSchemas, error) {
	header, err := CompileSchema("header.json", HeaderJSONSchema())
	if err != nil {
		return nil, err
	}
	item, err := CompileSchema("line_item.json", LineItemJSONSchema())
	if err != nil {
		return nil, err
	}
	return &compiledSchemas{header: header, item: item}, nil
})

// CompileSchema compiles schemaMap under the given resource name.
func CompileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON validates the JSON document in data against schema.
func ValidateJSON(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
