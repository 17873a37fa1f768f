package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appconfd/appconfd/internal/validate"
)

var testSchema = []byte(`{
	"type": "object",
	"properties": {
		"myConfig": {
			"type": "object",
			"properties": {
				"prop1": {"type": "boolean"},
				"prop2": {"type": "string"},
				"prop3": {"type": "number"}
			},
			"required": ["prop1"]
		}
	},
	"required": ["myConfig"]
}`)

func TestValidator_Valid(t *testing.T) {
	v, err := validate.New(testSchema)
	require.NoError(t, err)

	err = v.Validate([]byte(`{"myConfig":{"prop1":true,"prop2":"ciao","prop3":100000}}`))
	assert.NoError(t, err)
}

func TestValidator_Invalid(t *testing.T) {
	v, err := validate.New(testSchema)
	require.NoError(t, err)

	err = v.Validate([]byte(`{"myConfig":{"prop1":"not-a-bool"}}`))
	require.Error(t, err)
	assert.True(t, validate.IsValidationError(err))
	assert.Contains(t, err.Error(), "prop1")
}

func TestValidator_MissingRequired(t *testing.T) {
	v, err := validate.New(testSchema)
	require.NoError(t, err)

	err = v.Validate([]byte(`{}`))
	require.Error(t, err)
	assert.True(t, validate.IsValidationError(err))
}

func TestValidator_MalformedSchema(t *testing.T) {
	_, err := validate.New([]byte(`{"type": 42}`))
	assert.Error(t, err)
}
