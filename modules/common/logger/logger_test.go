package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

func TestMiddlewareLogsStatus(t *testing.T) {
	g := NewWithT(t)

	var buf bytes.Buffer
	l := zerolog.New(&buf)
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presets", nil))
	g.Expect(rec.Code).To(Equal(http.StatusTeapot))

	var entry map[string]interface{}
	g.Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
	g.Expect(entry).To(HaveKeyWithValue("method", "GET"))
	g.Expect(entry).To(HaveKeyWithValue("path", "/api/presets"))
	g.Expect(entry).To(HaveKeyWithValue("status", BeEquivalentTo(http.StatusTeapot)))
}

func TestMiddlewareSkipsWebSocketUpgrade(t *testing.T) {
	g := NewWithT(t)

	var buf bytes.Buffer
	var passedThrough http.ResponseWriter
	h := Middleware(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		passedThrough = w
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(rec, req)

	g.Expect(passedThrough).To(BeIdenticalTo(http.ResponseWriter(rec)))
	g.Expect(buf.Len()).To(BeZero())
}

func TestSetupLevel(t *testing.T) {
	g := NewWithT(t)

	g.Expect(Setup("development").GetLevel()).To(Equal(zerolog.DebugLevel))
	g.Expect(Setup("production").GetLevel()).To(Equal(zerolog.InfoLevel))
}
