package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema built from a generic map.
type Schema struct {
	once     sync.Once
	def      map[string]any
	compiled *jsonschema.Schema
	err      error
}

// NewSchema defers compilation to the first Validate call.
func NewSchema(def map[string]any) *Schema {
	return &Schema{def: def}
}

func (s *Schema) compile() {
	b, err := json.Marshal(s.def)
	if err != nil {
		s.err = fmt.Errorf("marshal schema: %w", err)
		return
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		s.err = fmt.Errorf("add schema: %w", err)
		return
	}
	s.compiled, s.err = compiler.Compile("schema.json")
	if s.err != nil {
		s.err = fmt.Errorf("compile schema: %w", s.err)
	}
}

// Validate checks data against the schema.
func (s *Schema) Validate(data []byte) error {
	s.once.Do(s.compile)
	if s.err != nil {
		return s.err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	return NewSchema(schemaMap).Validate(data)
}
