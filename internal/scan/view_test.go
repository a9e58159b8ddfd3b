package scan

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wolfeng/barscan/internal/enrichment"
)

var _ = Describe("SearchURL", func() {
	It("should substitute the decoded text", func() {
		Expect(SearchURL("012345678905")).To(Equal("https://www.google.com/search?q=012345678905"))
	})

	It("should escape the decoded text", func() {
		Expect(SearchURL("A&B 1")).To(Equal("https://www.google.com/search?q=A%26B+1"))
	})
})

var _ = Describe("NewListItem", func() {
	var record Record

	BeforeEach(func() {
		record = Record{
			ID:          "scan-1",
			DecodedText: "012345678905",
			Format:      "UPC_A",
			Timestamp:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).UnixMilli(),
		}
	})

	It("should show the decoded text while identifying", func() {
		record.Loading = true
		item := NewListItem(record, time.UTC)
		Expect(item.Title).To(Equal("012345678905"))
		Expect(item.Subtitle).To(Equal("Identifying..."))
		Expect(item.Time).To(Equal("10:30:00"))
	})

	It("should show the product once identified", func() {
		record.ProductInfo = &dietCola
		item := NewListItem(record, time.UTC)
		Expect(item.Title).To(Equal("Diet Cola 12oz"))
		Expect(item.Subtitle).To(Equal("Beverages"))
	})

	It("should show an unknown category without product details", func() {
		Expect(NewListItem(record, time.UTC).Subtitle).To(Equal("Unknown Category"))
	})

	It("should keep the decoded text when the stored product has no name", func() {
		record.ProductInfo = &enrichment.ProductInfo{Category: "Beverages"}
		item := NewListItem(record, time.UTC)
		Expect(item.Title).To(Equal("012345678905"))
		Expect(item.Subtitle).To(Equal("Beverages"))
	})
})

var _ = Describe("NewDetail", func() {
	var record Record

	BeforeEach(func() {
		record = Record{ID: "scan-1", DecodedText: "012345678905", Format: "UPC_A"}
	})

	When("the record is loading", func() {
		BeforeEach(func() {
			record.Loading = true
			record.ProductInfo = &dietCola
		})

		It("should not trust the product details", func() {
			d := NewDetail(record)
			Expect(d.Heading).To(Equal("Analyzing..."))
			Expect(d.Identified).To(BeFalse())
			Expect(d.Category).To(BeEmpty())
		})
	})

	When("the record is identified", func() {
		BeforeEach(func() {
			record.ProductInfo = &dietCola
		})

		It("should show the product", func() {
			d := NewDetail(record)
			Expect(d.Heading).To(Equal("Diet Cola 12oz"))
			Expect(d.Category).To(Equal("Beverages"))
			Expect(d.Price).To(Equal("$1-$2"))
			Expect(d.Description).To(Equal("A carbonated soft drink."))
		})

		It("should offer the decoded text for copying and searching", func() {
			d := NewDetail(record)
			Expect(d.CopyText).To(Equal("012345678905"))
			Expect(d.SearchURL).To(Equal("https://www.google.com/search?q=012345678905"))
		})
	})

	When("no price was estimated", func() {
		BeforeEach(func() {
			fallback := enrichment.Fallback()
			record.ProductInfo = &fallback
		})

		It("should show N/A", func() {
			Expect(NewDetail(record).Price).To(Equal("N/A"))
		})
	})

	When("the record has no product details", func() {
		It("should explain why", func() {
			d := NewDetail(record)
			Expect(d.Heading).To(Equal("Scanned Item"))
			Expect(d.Message).To(ContainSubstring("Could not retrieve product details"))
		})
	})
})

var _ = Describe("RenderHistory", func() {
	It("should explain an empty history", func() {
		var buf bytes.Buffer
		Expect(RenderHistory(&buf, nil, time.UTC)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("No scans yet"))
	})

	It("should list every record", func() {
		var buf bytes.Buffer
		Expect(RenderHistory(&buf, sampleHistory(), time.UTC)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Identifying..."))
		Expect(buf.String()).To(ContainSubstring("Diet Cola 12oz"))
		Expect(buf.String()).To(ContainSubstring("scan-2"))
	})
})

var _ = Describe("RenderDetail", func() {
	It("should render an identified product", func() {
		var buf bytes.Buffer
		Expect(RenderDetail(&buf, sampleHistory()[1])).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Diet Cola 12oz"))
		Expect(buf.String()).To(ContainSubstring("Est. Price:  $1-$2"))
		Expect(buf.String()).To(ContainSubstring("Search: https://www.google.com/search?q=4006381333931"))
	})

	It("should render a loading record", func() {
		var buf bytes.Buffer
		Expect(RenderDetail(&buf, sampleHistory()[0])).To(Succeed())
		Expect(buf.String()).To(HavePrefix("Analyzing..."))
	})
})
