// Package validate checks configuration payloads against the JSON
// schema validators attached to a configuration profile.
package validate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Validator validates payloads against a single JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

func New(schemaJSON []byte) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

func NewFromFile(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}

	return New(data)
}

// Validate returns a *ValidationError when data does not conform
// to the schema.
func (v *Validator) Validate(data []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validating payload: %w", err)
	}

	if result.Valid() {
		return nil
	}

	return &ValidationError{Result: result}
}

// ValidationError carries the individual schema violations.
type ValidationError struct {
	Result *gojsonschema.Result
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Errors()))
	for _, desc := range e.Result.Errors() {
		msgs = append(msgs, desc.String())
	}

	return "payload does not conform to schema: " + strings.Join(msgs, "; ")
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
