package scan

import (
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/wolfeng/barscan/internal/decoder"
	"github.com/wolfeng/barscan/internal/enrichment"
)

var _ = Describe("Server", func() {
	var (
		enricher    *mockEnricher
		metrics     *Metrics
		service     *Service
		scanner     *Scanner
		camera      *fakeCamera
		server      *Server
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		enricher = newMockEnricher()
		enricher.results["012345678905"] = dietCola
		metrics = NewMetrics()
		service = NewServiceWithDeps(enricher, []Record{
			{ID: "seed-1", DecodedText: "4006381333931", Format: "EAN_13", Timestamp: 1, ProductInfo: &enrichment.ProductInfo{Name: "Pen", Category: "Office", Description: "A pen."}},
		}, Config{}, metrics, &mockIDGenerator{}, &mockTimeSource{now: time.UnixMilli(1700000000000)})
		camera = &fakeCamera{}
		scanner = NewScanner(newFakeDecoder(camera, &fakeEngine{
			result: decoder.Result{Text: "012345678905", Format: decoder.FormatUPCA},
		}), service, ScannerHooks{})
		server = NewServerWithMux(service, scanner, metrics, http.NewServeMux())

		ghttpServer = ghttp.NewServer()
		ghttpServer.AllowUnhandledRequests = false
	})

	AfterEach(func() {
		scanner.Close()
		ghttpServer.Close()
	})

	do := func(method, path string) *http.Response {
		ghttpServer.AppendHandlers(server.ServeHTTP)
		req, err := http.NewRequest(method, ghttpServer.URL()+path, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	Describe("handleIndex", func() {
		It("should return the HTML page", func() {
			resp := do(http.MethodGet, "/")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("BarScan AI"))
		})

		It("should return Not Found for unknown paths", func() {
			resp := do(http.MethodGet, "/nope")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return Method Not Allowed for POST", func() {
			resp := do(http.MethodPost, "/")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("handleListScans", func() {
		It("should return the history list", func() {
			resp := do(http.MethodGet, "/api/scans")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("application/json"))
			var items []ListItem
			decode(resp, &items)
			Expect(items).To(HaveLen(1))
			Expect(items[0].Title).To(Equal("Pen"))
			Expect(items[0].Subtitle).To(Equal("Office"))
		})
	})

	Describe("handleGetScan", func() {
		It("should return the detail view", func() {
			resp := do(http.MethodGet, "/api/scans/seed-1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var detail Detail
			decode(resp, &detail)
			Expect(detail.Heading).To(Equal("Pen"))
			Expect(detail.SearchURL).To(Equal("https://www.google.com/search?q=4006381333931"))
		})

		It("should return Not Found for an unknown scan", func() {
			resp := do(http.MethodGet, "/api/scans/missing")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("focus", func() {
		It("should have nothing focused initially", func() {
			resp := do(http.MethodGet, "/api/focus")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})

		It("should focus and clear a scan", func() {
			resp := do(http.MethodPost, "/api/scans/seed-1/focus")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = do(http.MethodGet, "/api/focus")
			var detail Detail
			decode(resp, &detail)
			Expect(detail.ID).To(Equal("seed-1"))

			resp = do(http.MethodDelete, "/api/focus")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			_, ok := service.Focused()
			Expect(ok).To(BeFalse())
		})

		It("should return Not Found when focusing an unknown scan", func() {
			resp := do(http.MethodPost, "/api/scans/missing/focus")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("scanner", func() {
		It("should scan a barcode and identify it", func() {
			resp := do(http.MethodPost, "/api/scanner")
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			var state ScannerState
			decode(resp, &state)
			Expect(state.Status).To(Equal(StatusScanning))

			Eventually(func() ScannerStatus { return scanner.State().Status }).Should(Equal(StatusSuccess))
			waitSettled(service)

			resp = do(http.MethodGet, "/api/focus")
			var detail Detail
			decode(resp, &detail)
			Expect(detail.DecodedText).To(Equal("012345678905"))
			Expect(detail.Heading).To(Equal("Diet Cola 12oz"))
		})

		It("should stop scanning", func() {
			resp := do(http.MethodPost, "/api/scanner")
			resp.Body.Close()
			resp = do(http.MethodDelete, "/api/scanner")
			var state ScannerState
			decode(resp, &state)
			Expect(state.Status).To(Equal(StatusIdle))
		})
	})

	Describe("metrics", func() {
		It("should expose the collectors", func() {
			resp := do(http.MethodGet, "/metrics")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("barscan_history_records"))
		})
	})
})
