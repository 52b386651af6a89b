package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// createInvoiceSchema constrains the invoice-creation request body before
// it ever reaches a handler.
const createInvoiceSchema = `{
	"type": "object",
	"required": ["item_id", "identity_kind", "identity_value", "amount_sats"],
	"additionalProperties": false,
	"properties": {
		"item_id": {"type": "string", "minLength": 1},
		"identity_kind": {"type": "string", "enum": ["user", "anon"]},
		"identity_value": {"type": "string", "minLength": 1},
		"amount_sats": {"type": "integer", "minimum": 1},
		"comment": {"type": "string"}
	}
}`

var createInvoiceSchemaLoader = gojsonschema.NewStringLoader(createInvoiceSchema)

// validateCreateInvoice validates raw request bytes against the schema and
// flattens any violations into one error message.
func validateCreateInvoice(body []byte) error {
	result, err := gojsonschema.Validate(createInvoiceSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("invalid request body: %s", strings.Join(violations, "; "))
}
