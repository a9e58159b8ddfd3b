package scan

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"
)

// SearchURLTemplate is the outbound web search for a decoded text
const SearchURLTemplate = "https://www.google.com/search?q=%s"

const notFoundMessage = "Could not retrieve product details. This might be an internal barcode or not listed publicly."

// SearchURL returns the web search link for a decoded text
func SearchURL(text string) string {
	return fmt.Sprintf(SearchURLTemplate, url.QueryEscape(text))
}

// ListItem is one row of the history list
type ListItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Format   string `json:"format"`
	Subtitle string `json:"subtitle"`
	Time     string `json:"time"`
	Loading  bool   `json:"loading"`
}

// NewListItem builds the history row for a record
func NewListItem(r Record, loc *time.Location) ListItem {
	item := ListItem{
		ID:       r.ID,
		Title:    r.DecodedText,
		Format:   r.Format,
		Subtitle: "Unknown Category",
		Time:     time.UnixMilli(r.Timestamp).In(loc).Format(time.TimeOnly),
		Loading:  r.Loading,
	}
	if r.ProductInfo != nil {
		if r.ProductInfo.Name != "" {
			item.Title = r.ProductInfo.Name
		}
		if r.ProductInfo.Category != "" {
			item.Subtitle = r.ProductInfo.Category
		}
	}
	if r.Loading {
		item.Subtitle = "Identifying..."
	}
	return item
}

// Detail is the detail view of one record
type Detail struct {
	ID          string `json:"id"`
	Heading     string `json:"heading"`
	Format      string `json:"format"`
	DecodedText string `json:"decodedText"`
	Loading     bool   `json:"loading"`
	Identified  bool   `json:"identified"`
	Category    string `json:"category,omitempty"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	CopyText    string `json:"copyText"`
	SearchURL   string `json:"searchUrl"`
}

// NewDetail builds the detail view for a record
func NewDetail(r Record) Detail {
	d := Detail{
		ID:          r.ID,
		Heading:     "Scanned Item",
		Format:      r.Format,
		DecodedText: r.DecodedText,
		Loading:     r.Loading,
		CopyText:    r.DecodedText,
		SearchURL:   SearchURL(r.DecodedText),
	}

	switch {
	case r.Loading:
		d.Heading = "Analyzing..."
	case r.ProductInfo != nil:
		d.Identified = true
		if r.ProductInfo.Name != "" {
			d.Heading = r.ProductInfo.Name
		}
		d.Category = r.ProductInfo.Category
		d.Price = r.ProductInfo.EstimatedPrice
		if d.Price == "" {
			d.Price = "N/A"
		}
		d.Description = r.ProductInfo.Description
	default:
		d.Message = notFoundMessage
	}
	return d
}

// RenderHistory writes the history list as a table
func RenderHistory(w io.Writer, history []Record, loc *time.Location) error {
	if len(history) == 0 {
		_, err := fmt.Fprintln(w, "No scans yet\nRun \"barscan scan\" to start")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tFORMAT\tPRODUCT\tCATEGORY\tID")
	for _, r := range history {
		item := NewListItem(r, loc)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.Time, item.Format, item.Title, item.Subtitle, item.ID)
	}
	return tw.Flush()
}

// RenderDetail writes the detail view of a record
func RenderDetail(w io.Writer, r Record) error {
	d := NewDetail(r)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.Heading)
	fmt.Fprintf(&b, "%s • %s\n\n", d.Format, d.DecodedText)
	switch {
	case d.Loading:
		b.WriteString("Asking the AI about this product...\n")
	case d.Identified:
		fmt.Fprintf(&b, "Category:    %s\n", d.Category)
		fmt.Fprintf(&b, "Est. Price:  %s\n", d.Price)
		fmt.Fprintf(&b, "Description: %s\n", d.Description)
	default:
		fmt.Fprintf(&b, "%s\n", d.Message)
	}
	fmt.Fprintf(&b, "\nSearch: %s\n", d.SearchURL)

	_, err := io.WriteString(w, b.String())
	return err
}
