package workverification

import "mosaic-functions/internal/common/validation"

const contentHashPattern = `^(Qm[1-9A-HJ-NP-Za-km-z]{44}|b[a-z2-7]{58,})$`

func GetInputSchema() validation.JSONSchema {
	hash := validation.Property{
		Type:    "string",
		Pattern: validation.StringPtr(contentHashPattern),
	}
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"args"},
		Properties: map[string]validation.Property{
			"args": {
				Type:        "array",
				Description: "submission hash, report hash, certificate artist, certificate title",
				MinItems:    validation.IntPtr(2),
				MaxItems:    validation.IntPtr(4),
				PrefixItems: []validation.Property{
					hash,
					hash,
					{Type: "string"},
					{Type: "string"},
				},
			},
		},
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"response", "encodedType", "outcome"},
		Properties: map[string]validation.Property{
			"response": {
				Type:        "string",
				Description: "0x-hex ABI-encoded (string,uint256)",
				Pattern:     validation.StringPtr(`^0x([0-9a-f]{2})*$`),
			},
			"encodedType": {
				Type: "string",
				Enum: []string{"(string,uint256)"},
			},
			"outcome": {
				Type: "string",
				Enum: []string{"result", "discrepancies", "error"},
			},
			"discrepancyCount": {
				Type:    "integer",
				Minimum: floatPtr(0),
			},
			"error": {
				Type: "string",
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
