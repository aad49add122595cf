package certificateextraction

import "mosaic-functions/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"args"},
		Properties: map[string]validation.Property{
			"args": {
				Type:        "array",
				Description: "certificate image hash",
				MinItems:    validation.IntPtr(1),
				MaxItems:    validation.IntPtr(1),
				PrefixItems: []validation.Property{
					{
						Type:    "string",
						Pattern: validation.StringPtr(`^(Qm[1-9A-HJ-NP-Za-km-z]{44}|b[a-z2-7]{58,})$`),
					},
				},
			},
		},
	}
}
