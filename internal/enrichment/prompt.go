package enrichment

import "fmt"

// productPrompt is the shared prompt used by all LLM providers for identifying products
const productPrompt = `I just scanned a barcode with value %q and format %q.
Please identify what product this likely is.
If it's a standard GTIN/EAN/UPC, try to guess the specific product.
If you can't be 100%% sure, provide the most likely generic description (e.g., "A consumer good", "A book").

Return the response in JSON format with these fields:
- "name": the likely name of the product
- "category": the category of the product (e.g., Food, Electronics, Book)
- "description": a short description of what the product is
- "estimatedPrice": estimated price range if known (e.g., $5-$10), or "Unknown"`

func buildPrompt(code, format string) string {
	return fmt.Sprintf(productPrompt, code, format)
}

// schemaField describes one property of the response schema
type schemaField struct {
	name        string
	description string
	required    bool
}

// responseFields is the fixed response schema shared by all providers
var responseFields = []schemaField{
	{name: "name", description: "The likely name of the product", required: true},
	{name: "category", description: "The category of the product (e.g., Food, Electronics, Book)", required: true},
	{name: "description", description: "A short description of what the product is.", required: true},
	{name: "estimatedPrice", description: "Estimated price range if known (e.g., $5-$10), or 'Unknown'"},
}

func requiredFields() []string {
	var out []string
	for _, f := range responseFields {
		if f.required {
			out = append(out, f.name)
		}
	}
	return out
}
