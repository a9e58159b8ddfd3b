package enrichment

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockIdentifier is a mock implementation of Identifier
type mockIdentifier struct {
	info     *ProductInfo
	err      error
	panicMsg string
	calls    int
	closed   bool
}

func (m *mockIdentifier) Identify(ctx context.Context, code, format string) (*ProductInfo, error) {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

func (m *mockIdentifier) Close() error {
	m.closed = true
	return nil
}

// mockRecorder is a mock implementation of Recorder
type mockRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockRecorder) ObserveIdentify(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

var _ = Describe("Client", func() {
	var (
		identifier *mockIdentifier
		cache      Cache
		recorder   *mockRecorder
		client     *Client
		info       ProductInfo
	)

	BeforeEach(func() {
		identifier = &mockIdentifier{
			info: &ProductInfo{
				Name:           "Diet Cola 12oz",
				Category:       "Beverages",
				Description:    "A carbonated soft drink.",
				EstimatedPrice: "$1-$2",
			},
		}
		cache = nil
		recorder = &mockRecorder{}
	})

	JustBeforeEach(func() {
		client = NewClient(identifier, cache, recorder)
		info = client.Identify(context.Background(), "012345678905", "UPC_A")
	})

	When("the backend identifies the product", func() {
		It("should return the backend result", func() {
			Expect(info.Name).To(Equal("Diet Cola 12oz"))
			Expect(info.EstimatedPrice).To(Equal("$1-$2"))
		})

		It("should record the outcome", func() {
			Expect(recorder.outcomes).To(Equal([]string{OutcomeIdentified}))
		})
	})

	When("the backend fails", func() {
		BeforeEach(func() {
			identifier.err = errors.New("network unreachable")
		})

		It("should return the fallback record", func() {
			Expect(info).To(Equal(ProductInfo{
				Name:        "Unknown Product",
				Category:    "Unknown",
				Description: "Could not identify product details via AI.",
			}))
		})

		It("should record the fallback", func() {
			Expect(recorder.outcomes).To(Equal([]string{OutcomeFallback}))
		})
	})

	When("the backend returns nothing", func() {
		BeforeEach(func() {
			identifier.info = nil
		})

		It("should return the fallback record", func() {
			Expect(info).To(Equal(Fallback()))
		})
	})

	When("the backend panics", func() {
		BeforeEach(func() {
			identifier.panicMsg = "boom"
		})

		It("should return the fallback record", func() {
			Expect(info).To(Equal(Fallback()))
		})
	})

	When("a cache is configured", func() {
		BeforeEach(func() {
			cache = NewCache(1, time.Minute)
		})

		It("should serve repeated lookups from the cache", func() {
			again := client.Identify(context.Background(), "012345678905", "UPC_A")
			Expect(again).To(Equal(info))
			Expect(identifier.calls).To(Equal(1))
			Expect(recorder.outcomes).To(Equal([]string{OutcomeIdentified, OutcomeCached}))
		})

		It("should not share entries between formats", func() {
			client.Identify(context.Background(), "012345678905", "EAN_13")
			Expect(identifier.calls).To(Equal(2))
		})
	})

	When("a cache is configured and the backend fails", func() {
		BeforeEach(func() {
			cache = NewCache(1, time.Minute)
			identifier.err = errors.New("quota exceeded")
		})

		It("should not cache the fallback", func() {
			identifier.err = nil
			again := client.Identify(context.Background(), "012345678905", "UPC_A")
			Expect(again.Name).To(Equal("Diet Cola 12oz"))
			Expect(identifier.calls).To(Equal(2))
		})
	})

	Describe("Close", func() {
		It("should close the identifier", func() {
			Expect(client.Close()).To(Succeed())
			Expect(identifier.closed).To(BeTrue())
		})
	})
})

var _ = Describe("NewCache", func() {
	It("should disable caching for a zero size", func() {
		c := NewCache(0, time.Minute)
		c.Set("1", "UPC_A", Fallback())
		_, ok := c.Get("1", "UPC_A")
		Expect(ok).To(BeFalse())
	})

	It("should return stored entries", func() {
		c := NewCache(1, 0)
		c.Set("1", "UPC_A", ProductInfo{Name: "n", Category: "c", Description: "d"})
		got, ok := c.Get("1", "UPC_A")
		Expect(ok).To(BeTrue())
		Expect(got.Name).To(Equal("n"))
	})
})
