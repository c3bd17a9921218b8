package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem"
	"github.com/sarchlab/flowmem/mem/dummymem"
)

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		counter *mem.CallCounter
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()
		counter = mem.NewCallCounter("dump", dummymem.New(address.MiB))
		m.RegisterBackend(counter)

		buf := make([]byte, 16)
		Expect(mem.PhysRead(counter, 0x100, buf)).To(Succeed())
	})

	It("should list backends", func() {
		rec := get("/api/list_backends")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"dump"}))
	})

	It("should report backend statistics", func() {
		rec := get("/api/backend/dump")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var view backendView
		Expect(json.Unmarshal(rec.Body.Bytes(), &view)).To(Succeed())
		Expect(view.Name).To(Equal("dump"))
		Expect(view.Stats.ReadCalls).To(Equal(uint64(1)))
		Expect(view.Stats.ReadBytes).To(Equal(uint64(16)))
	})

	It("should 404 on unknown backends", func() {
		Expect(get("/api/backend/nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize fields", func() {
		rec := get(`/api/field/{"backend_name":"dump"}`)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should reject malformed field requests", func() {
		Expect(get("/api/field/notjson").Code).To(Equal(http.StatusBadRequest))
	})

	It("should reset backends", func() {
		rec := httptest.NewRecorder()
		m.Router().ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/reset/dump", nil))

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(counter.Stats().ReadCalls).To(BeZero())
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("scan", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)

		rec := get("/api/progress")

		var bars []ProgressSnapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("scan"))
		Expect(bars[0].Finished).To(Equal(uint64(3)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})

	It("should report process resources", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should fall back to a random port for privileged ports", func() {
		Expect(m.WithPortNumber(80).portNumber).To(BeZero())
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})
})
