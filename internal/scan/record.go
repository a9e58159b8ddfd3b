package scan

import (
	"fmt"

	"github.com/wolfeng/barscan/internal/enrichment"
)

// UnknownFormat is recorded when the decoder does not report a symbology
const UnknownFormat = "UNKNOWN"

// Record is one decoded barcode and its identification
type Record struct {
	ID          string                  `json:"id"`
	DecodedText string                  `json:"decodedText"`
	Format      string                  `json:"format"`
	Timestamp   int64                   `json:"timestamp"` // Milliseconds since epoch
	ProductInfo *enrichment.ProductInfo `json:"productInfo,omitempty"`
	Loading     bool                    `json:"loading"`
}

// clone returns a copy that shares no memory with r
func (r Record) clone() Record {
	if r.ProductInfo != nil {
		info := *r.ProductInfo
		r.ProductInfo = &info
	}
	return r
}

func cloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.clone()
	}
	return out
}

// Find returns a copy of the record with the given ID
func Find(history []Record, id string) (Record, error) {
	for _, r := range history {
		if r.ID == id {
			return r.clone(), nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}
