package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/onsi/gomega"

	"skagen-studio-server/modules/common/library"
	"skagen-studio-server/modules/events"
	"skagen-studio-server/modules/studio"
)

// memoryQueue is an in-process Queue.
type memoryQueue struct {
	mu       sync.Mutex
	ids      chan string
	jobs     map[string]*Job
	statuses map[string]Status
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{
		ids:      make(chan string, 16),
		jobs:     make(map[string]*Job),
		statuses: make(map[string]Status),
	}
}

func (q *memoryQueue) Enqueue(_ context.Context, job *Job) (int64, error) {
	// round-trip through JSON like the redis payload
	raw, err := json.Marshal(job)
	if err != nil {
		return 0, err
	}
	var stored Job
	if err := json.Unmarshal(raw, &stored); err != nil {
		return 0, err
	}

	q.mu.Lock()
	q.jobs[job.ID] = &stored
	q.statuses[job.ID] = Status{ID: job.ID, State: StateQueued, CreatedAt: 1}
	q.mu.Unlock()

	q.ids <- job.ID
	return int64(len(q.ids)), nil
}

func (q *memoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	select {
	case id := <-q.ids:
		q.mu.Lock()
		defer q.mu.Unlock()
		job, ok := q.jobs[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return job, nil
	case <-time.After(timeout):
		return nil, ErrQueueEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memoryQueue) SetStatus(_ context.Context, st *Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.statuses[st.ID]
	next := *st
	if next.CreatedAt == 0 {
		next.CreatedAt = prev.CreatedAt
	}
	q.statuses[st.ID] = next
	return nil
}

func (q *memoryQueue) Status(_ context.Context, id string) (*Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return &st, nil
}

func (q *memoryQueue) state(id string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statuses[id].State
}

type fakeGenerator struct {
	mu     sync.Mutex
	inputs []*studio.GenerateInput
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, in *studio.GenerateInput) (*studio.GenerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return &studio.GenerationResult{Success: false, ModelUsed: "gemini-2.5-flash-image", Error: f.err.Error()}, f.err
	}
	return &studio.GenerationResult{Success: true, ModelUsed: "gemini-2.5-flash-image", Path: "results/result_20250101-120000.png"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Status)
	}
	return out
}

func startWorker(t *testing.T, q Queue, gen Generator, pub events.Publisher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewWorker(q, gen, pub).Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func sampleJob(id string) *Job {
	target := studio.ImageAsset{Name: "red.png", Data: []byte("target-bytes"), MimeType: "image/png"}
	return &Job{ID: id, Input: &studio.GenerateInput{
		Products: []studio.ImageAsset{{Name: "front.png", Data: []byte("product-bytes"), MimeType: "image/png"}},
		Target:   &target,
		Prompt:   "Warm light.",
	}}
}

func TestWorkerProcessesJob(t *testing.T) {
	g := NewWithT(t)

	q := newMemoryQueue()
	gen := &fakeGenerator{}
	pub := &recordingPublisher{}
	startWorker(t, q, gen, pub)

	_, err := q.Enqueue(context.Background(), sampleJob("job-1"))
	g.Expect(err).NotTo(HaveOccurred())

	g.Eventually(func() string { return q.state("job-1") }).WithTimeout(2 * time.Second).Should(Equal(StateSucceeded))

	st, err := q.Status(context.Background(), "job-1")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(st.ModelUsed).To(Equal("gemini-2.5-flash-image"))
	g.Expect(st.Path).To(Equal("results/result_20250101-120000.png"))
	g.Expect(st.CreatedAt).To(BeEquivalentTo(1))
	g.Expect(st.UpdatedAt).NotTo(BeZero())

	gen.mu.Lock()
	g.Expect(gen.inputs).To(HaveLen(1))
	in := gen.inputs[0]
	gen.mu.Unlock()
	g.Expect(in.JobID).To(Equal("job-1"))
	g.Expect(in.Products[0].Data).To(Equal([]byte("product-bytes")))
	g.Expect(in.Target.Data).To(Equal([]byte("target-bytes")))
	g.Expect(in.Prompt).To(Equal("Warm light."))

	g.Eventually(pub.statuses).WithTimeout(2 * time.Second).Should(Equal([]string{StateProcessing, StateSucceeded}))
}

func TestWorkerRecordsFailure(t *testing.T) {
	g := NewWithT(t)

	q := newMemoryQueue()
	gen := &fakeGenerator{err: errors.New("failed after 3 retries, last error: 503")}
	startWorker(t, q, gen, nil)

	_, err := q.Enqueue(context.Background(), sampleJob("job-2"))
	g.Expect(err).NotTo(HaveOccurred())

	g.Eventually(func() string { return q.state("job-2") }).WithTimeout(2 * time.Second).Should(Equal(StateFailed))

	st, err := q.Status(context.Background(), "job-2")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(st.Error).To(ContainSubstring("503"))
	g.Expect(st.ModelUsed).To(Equal("gemini-2.5-flash-image"))
}

func TestWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewWorker(newMemoryQueue(), &fakeGenerator{}, nil).Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func newJobRouter(t *testing.T, q Queue) *mux.Router {
	t.Helper()
	assets := t.TempDir()
	fabric := filepath.Join(assets, "cover", library.MaterialFabric)
	if err := os.MkdirAll(fabric, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fabric, "Blue.jpg"), []byte("swatch"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := mux.NewRouter()
	NewEnqueueHandler(q, library.New(assets)).RegisterRoutes(r)
	return r
}

func jobForm(t *testing.T, swatch string, withProduct bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("target_material", "fabric")
	mw.WriteField("target_swatch", swatch)
	if withProduct {
		fw, err := mw.CreateFormFile("products", "front.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("product"))
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestEnqueueAndStatus(t *testing.T) {
	g := NewWithT(t)

	q := newMemoryQueue()
	router := newJobRouter(t, q)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, jobForm(t, "Blue.jpg", true))
	g.Expect(rec.Code).To(Equal(http.StatusAccepted), rec.Body.String())

	var resp EnqueueResponse
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	g.Expect(resp.Success).To(BeTrue())
	g.Expect(resp.JobID).NotTo(BeEmpty())
	g.Expect(resp.Queue).To(Equal(QueueKey))
	g.Expect(resp.QueuePosition).To(BeEquivalentTo(1))

	q.mu.Lock()
	stored := q.jobs[resp.JobID]
	q.mu.Unlock()
	g.Expect(stored.Input.JobID).To(Equal(resp.JobID))
	g.Expect(stored.Input.Target.Data).To(Equal([]byte("swatch")))
	g.Expect(stored.Input.Products).To(HaveLen(1))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp.JobID, nil))
	g.Expect(rec.Code).To(Equal(http.StatusOK))

	var st Status
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &st)).To(Succeed())
	g.Expect(st.ID).To(Equal(resp.JobID))
	g.Expect(st.State).To(Equal(StateQueued))
}

func TestEnqueueRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		swatch  string
		product bool
		status  int
	}{
		{name: "no products", swatch: "Blue.jpg", product: false, status: http.StatusBadRequest},
		{name: "missing swatch", swatch: "Green.jpg", product: true, status: http.StatusNotFound},
		{name: "traversal", swatch: "../secret.jpg", product: true, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			q := newMemoryQueue()
			router := newJobRouter(t, q)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, jobForm(t, tt.swatch, tt.product))
			g.Expect(rec.Code).To(Equal(tt.status), rec.Body.String())
			g.Expect(q.ids).To(BeEmpty())
		})
	}
}

func TestStatusUnknownJob(t *testing.T) {
	g := NewWithT(t)

	rec := httptest.NewRecorder()
	newJobRouter(t, newMemoryQueue()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
}
