package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crosscloud/object-replicator/interfaces"
	"github.com/crosscloud/object-replicator/metrics"
	"github.com/crosscloud/object-replicator/replicator"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes HTTP requests for the replication service. It owns no
// retry logic of its own: it translates requests into replicator/adapter
// calls and terminal results into status codes.
type Handler struct {
	replicator        *replicator.Replicator
	destination       interfaces.StorageAdapter
	defaultDestBucket string
	metrics           *metrics.ReplicationMetrics
	log               *slog.Logger
}

// NewHandler creates a new HTTP request handler.
//
// The destination adapter serves the object existence/delete/list endpoints
// directly. The metrics collector may be nil when no metrics address is
// configured.
func NewHandler(repl *replicator.Replicator, destination interfaces.StorageAdapter, defaultDestBucket string, m *metrics.ReplicationMetrics, log *slog.Logger) *Handler {
	return &Handler{
		replicator:        repl,
		destination:       destination,
		defaultDestBucket: defaultDestBucket,
		metrics:           m,
		log:               log,
	}
}

type replicateRequest struct {
	SrcBucket  string `json:"src_bucket"`
	SrcKey     string `json:"src_key"`
	DestBucket string `json:"dest_bucket"`
	DestKey    string `json:"dest_key"`
}

type replicateResponse struct {
	Success          bool   `json:"success"`
	BytesTransferred int64  `json:"bytes_transferred"`
	Attempts         int    `json:"attempts"`
	Error            string `json:"error,omitempty"`
}

type existsResponse struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Exists bool   `json:"exists"`
}

type deleteResponse struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Status string `json:"status"`
}

type listResponse struct {
	Bucket  string                  `json:"bucket"`
	Objects []interfaces.ObjectInfo `json:"objects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleReplicate processes a single-object replication request.
//
// URL format: POST /v1/replicate
// Body: {"src_bucket", "src_key", "dest_bucket", "dest_key"}
//
// The destination bucket falls back to the configured default bucket and the
// destination key to the source key when omitted. Responds 200 with the
// replication result on success, 400 on a malformed request, 404 when the
// source object is absent, and 502 when the retry budget was exhausted. The
// body always carries the structured result, never a stack trace.
func (h *Handler) HandleReplicate(w http.ResponseWriter, r *http.Request) {
	var body replicateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	destBucket := body.DestBucket
	if destBucket == "" {
		destBucket = h.defaultDestBucket
	}
	destKey := body.DestKey
	if destKey == "" {
		destKey = body.SrcKey
	}

	result := h.replicator.Replicate(r.Context(), interfaces.ReplicationRequest{
		Source:      interfaces.ObjectRef{Bucket: body.SrcBucket, Key: body.SrcKey},
		Destination: interfaces.ObjectRef{Bucket: destBucket, Key: destKey},
	})
	h.observe(result)

	writeJSON(w, replicateStatus(result), replicateResponse{
		Success:          result.Success,
		BytesTransferred: result.BytesTransferred,
		Attempts:         result.Attempts,
		Error:            result.ErrorKind(),
	})
}

// HandleObjectExists reports whether an object is present in the destination
// store.
//
// URL format: GET /v1/object/{bucket}/{key...}
func (h *Handler) HandleObjectExists(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromURL(w, r)
	if !ok {
		return
	}

	exists, err := h.destination.Exists(r.Context(), ref)
	if err != nil {
		h.log.Error("Existence check failed",
			slog.String("object", ref.String()),
			"err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "destination storage failure"})
		return
	}

	writeJSON(w, http.StatusOK, existsResponse{Bucket: ref.Bucket, Key: ref.Key, Exists: exists})
}

// HandleObjectDelete removes an object from the destination store.
//
// URL format: DELETE /v1/object/{bucket}/{key...}
// Responds 200 if an object was deleted and 404 if it was already absent.
func (h *Handler) HandleObjectDelete(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromURL(w, r)
	if !ok {
		return
	}

	deleted, err := h.destination.Delete(r.Context(), ref)
	if err != nil {
		h.log.Error("Deletion failed",
			slog.String("object", ref.String()),
			"err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "destination storage failure"})
		return
	}

	if !deleted {
		writeJSON(w, http.StatusNotFound, deleteResponse{Bucket: ref.Bucket, Key: ref.Key, Status: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Bucket: ref.Bucket, Key: ref.Key, Status: "deleted"})
}

// HandleListObjects enumerates the objects of a destination bucket.
//
// URL format: GET /v1/objects/{bucket}
// An absent bucket yields an empty object list.
func (h *Handler) HandleListObjects(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")

	objects, err := h.destination.List(r.Context(), bucket)
	if err != nil {
		if errors.Is(err, interfaces.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.log.Error("Listing failed", slog.String("bucket", bucket), "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "destination storage failure"})
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Bucket: bucket, Objects: objects})
}

// HandleRoot serves the service banner.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cross-cloud object replicator API is running"})
}

// HandleHealth serves the liveness payload used by the original /health route.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports whether the destination store is reachable.
func (h *Handler) Ready(r *http.Request) bool {
	return h.destination.Available(r.Context())
}

// refFromURL extracts the bucket and wildcard key path parameters. On a
// malformed reference it writes a 400 response and reports false.
func (h *Handler) refFromURL(w http.ResponseWriter, r *http.Request) (interfaces.ObjectRef, bool) {
	ref := interfaces.ObjectRef{
		Bucket: chi.URLParam(r, "bucket"),
		Key:    chi.URLParam(r, "*"),
	}
	if err := ref.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return interfaces.ObjectRef{}, false
	}
	return ref, true
}

// observe records the terminal outcome of a replicate call.
func (h *Handler) observe(result interfaces.ReplicationResult) {
	if h.metrics == nil {
		return
	}

	outcome := "replicated"
	switch {
	case result.Success:
	case errors.Is(result.Err, interfaces.ErrInvalidRequest):
		outcome = "invalid_request"
	case errors.Is(result.Err, interfaces.ErrObjectNotFound):
		outcome = "not_found"
	default:
		outcome = "exhausted"
	}

	h.metrics.Replications.WithLabelValues(outcome).Inc()
	h.metrics.Attempts.Observe(float64(result.Attempts))
	if result.Success {
		h.metrics.BytesTransferred.Add(float64(result.BytesTransferred))
	}
}

// replicateStatus maps a terminal replication result onto an HTTP status.
func replicateStatus(result interfaces.ReplicationResult) int {
	switch {
	case result.Success:
		return http.StatusOK
	case errors.Is(result.Err, interfaces.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(result.Err, interfaces.ErrObjectNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
