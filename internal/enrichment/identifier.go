package enrichment

import "context"

// ProductInfo is the structured identification returned by the AI backend
type ProductInfo struct {
	Name           string `json:"name" validate:"required"`
	Category       string `json:"category" validate:"required"`
	Description    string `json:"description" validate:"required"`
	EstimatedPrice string `json:"estimatedPrice,omitempty"`
}

// Identifier defines the interface for AI product identification backends
type Identifier interface {
	// Identify asks the backend what product the barcode likely belongs to
	Identify(ctx context.Context, code, format string) (*ProductInfo, error)
	// Close closes the backend and releases resources
	Close() error
}

// Fallback returns the record used when identification fails for any reason
func Fallback() ProductInfo {
	return ProductInfo{
		Name:        "Unknown Product",
		Category:    "Unknown",
		Description: "Could not identify product details via AI.",
	}
}
