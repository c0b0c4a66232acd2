package fields

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/receiptscan/receiptscan/constants"
)

// buildRulesSchema returns the JSON-Schema for a rules overrides file as a
// generic map. Category keys and currency codes are constrained to the known
// enumerations so a typo fails loudly instead of silently never matching.
func buildRulesSchema() map[string]any {
	stringArray := func() map[string]any {
		return map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "string", "minLength": 1},
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"amount_patterns":   stringArray(),
			"date_patterns":     stringArray(),
			"vendor_stop_words": stringArray(),
			"category_keywords": map[string]any{
				"type":                 "object",
				"propertyNames":        map[string]any{"enum": constants.CategoriesAsStrings()},
				"additionalProperties": stringArray(),
			},
			"currency_patterns": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"code":     map[string]any{"type": "string", "enum": constants.CurrenciesAsStrings()},
						"patterns": stringArray(),
					},
					"required": []string{"code", "patterns"},
				},
			},
		},
	}
}

// validateRulesJSON validates a rules overrides document against the schema.
func validateRulesJSON(data []byte) error {
	b, err := json.Marshal(buildRulesSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}
	return nil
}
