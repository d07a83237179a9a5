package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"skagen-studio-server/modules/common/library"
	"skagen-studio-server/modules/studio"
)

// EnqueueHandler - 비동기 Job API 핸들러
type EnqueueHandler struct {
	queue   Queue
	library *library.Library
}

// EnqueueResponse - Enqueue 응답
type EnqueueResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Queue         string `json:"queue,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
}

// NewEnqueueHandler - EnqueueHandler 생성
func NewEnqueueHandler(queue Queue, lib *library.Library) *EnqueueHandler {
	return &EnqueueHandler{queue: queue, library: lib}
}

// RegisterRoutes - 라우트 등록
func (h *EnqueueHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/jobs", h.HandleEnqueue).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/jobs/{jobId}", h.HandleStatus).Methods("GET")
	log.Info().Msg("✅ Job routes registered: POST /api/jobs, GET /api/jobs/{jobId}")
}

// HandleEnqueue - POST /api/jobs (same form as /api/generate)
func (h *EnqueueHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	in, err := studio.ParseGenerateForm(r, h.library)
	if err != nil {
		log.Warn().Err(err).Msg("❌ [Enqueue] Invalid request")
		status := http.StatusBadRequest
		if errors.Is(err, library.ErrNotFound) {
			status = http.StatusNotFound
		}
		studio.WriteJSON(w, status, EnqueueResponse{Success: false, Error: err.Error()})
		return
	}
	if len(in.Products) == 0 || in.Target == nil {
		studio.WriteJSON(w, http.StatusBadRequest, EnqueueResponse{
			Success: false,
			Error:   "at least one product image and a target swatch are required",
		})
		return
	}

	job := &Job{ID: uuid.NewString(), Input: in}
	in.JobID = job.ID

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	position, err := h.queue.Enqueue(ctx, job)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("❌ [Enqueue] Failed")
		studio.WriteJSON(w, http.StatusInternalServerError, EnqueueResponse{Success: false, Error: err.Error()})
		return
	}

	log.Info().Str("job_id", job.ID).Int64("position", position).Msg("📥 [Enqueue] Job enqueued")

	studio.WriteJSON(w, http.StatusAccepted, EnqueueResponse{
		Success:       true,
		Message:       "Job enqueued successfully",
		JobID:         job.ID,
		Queue:         QueueKey,
		QueuePosition: position,
	})
}

// HandleStatus - GET /api/jobs/{jobId}
func (h *EnqueueHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["jobId"]

	st, err := h.queue.Status(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrJobNotFound) {
			status = http.StatusNotFound
		}
		studio.WriteJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	studio.WriteJSON(w, http.StatusOK, st)
}
