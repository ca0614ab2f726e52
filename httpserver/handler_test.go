package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosscloud/object-replicator/interfaces"
	"github.com/crosscloud/object-replicator/metrics"
	"github.com/crosscloud/object-replicator/replicator"
	"github.com/crosscloud/object-replicator/storage"
)

const testDestBucket = "replica-bucket"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakySource fails every GetStream call with a transient error, driving the
// retry loop to exhaustion.
type flakySource struct{}

func (f *flakySource) GetStream(ctx context.Context, ref interfaces.ObjectRef) (io.ReadCloser, error) {
	return nil, fmt.Errorf("%w: simulated outage", interfaces.ErrAdapterIO)
}

func (f *flakySource) PutStream(ctx context.Context, ref interfaces.ObjectRef, r io.Reader) (int64, error) {
	return 0, fmt.Errorf("%w: simulated outage", interfaces.ErrAdapterIO)
}

func (f *flakySource) Exists(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	return false, fmt.Errorf("%w: simulated outage", interfaces.ErrAdapterIO)
}

func (f *flakySource) Delete(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	return false, fmt.Errorf("%w: simulated outage", interfaces.ErrAdapterIO)
}

func (f *flakySource) List(ctx context.Context, bucket string) ([]interfaces.ObjectInfo, error) {
	return nil, fmt.Errorf("%w: simulated outage", interfaces.ErrAdapterIO)
}

func (f *flakySource) Available(ctx context.Context) bool { return false }
func (f *flakySource) Name() string                       { return "flaky" }
func (f *flakySource) LocationURI() string                { return "flaky://" }

type testEnv struct {
	router      http.Handler
	source      *storage.MemoryAdapter
	destination *storage.MemoryAdapter
	metrics     *metrics.ReplicationMetrics
}

func newTestEnv(t *testing.T, source interfaces.StorageAdapter) *testEnv {
	t.Helper()
	log := testLogger()

	env := &testEnv{destination: storage.NewMemoryAdapter(log)}
	if source == nil {
		env.source = storage.NewMemoryAdapter(log)
		source = env.source
	}

	repl, err := replicator.New(source, env.destination, interfaces.RetryPolicy{
		MaxRetries: 2,
		Delay:      time.Millisecond,
	}, log)
	require.NoError(t, err)

	env.metrics = metrics.NewReplicationMetrics(metrics.Namespace, prometheus.NewRegistry())
	handler := NewHandler(repl, env.destination, testDestBucket, env.metrics, log)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      log,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, handler, nil)
	require.NoError(t, err)

	env.router = srv.getRouter()
	return env
}

func (env *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHandleReplicate_EndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	env.source.Seed(interfaces.ObjectRef{Bucket: "source-bucket", Key: "hello.txt"}, []byte("hello world"))

	// Replicate the object, relying on the default destination bucket and
	// the source key as destination key.
	rec := env.do(t, http.MethodPost, "/v1/replicate", `{"src_bucket":"source-bucket","src_key":"hello.txt"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[replicateResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(11), resp.BytesTransferred)
	assert.Equal(t, 1, resp.Attempts)
	assert.Empty(t, resp.Error)

	// The copy is now visible in the destination store.
	rec = env.do(t, http.MethodGet, "/v1/object/replica-bucket/hello.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	obj := decode[existsResponse](t, rec)
	assert.True(t, obj.Exists)
	assert.Equal(t, "hello.txt", obj.Key)

	rec = env.do(t, http.MethodGet, "/v1/objects/replica-bucket", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	require.Len(t, list.Objects, 1)
	assert.Equal(t, interfaces.ObjectInfo{Key: "hello.txt", Size: 11}, list.Objects[0])

	// Delete it, then confirm a second delete reports absence.
	rec = env.do(t, http.MethodDelete, "/v1/object/replica-bucket/hello.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deleted", decode[deleteResponse](t, rec).Status)

	rec = env.do(t, http.MethodDelete, "/v1/object/replica-bucket/hello.txt", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[deleteResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/v1/object/replica-bucket/hello.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[existsResponse](t, rec).Exists)
}

func TestHandleObjectExists_AlwaysCarriesBoolean(t *testing.T) {
	env := newTestEnv(t, nil)
	env.destination.Seed(interfaces.ObjectRef{Bucket: "replica-bucket", Key: "present.txt"}, []byte("x"))

	// The boolean must be spelled out in the payload either way, so absent
	// objects are not left to the client's zero-value decoding.
	rec := env.do(t, http.MethodGet, "/v1/object/replica-bucket/absent.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bucket":"replica-bucket","key":"absent.txt","exists":false}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/object/replica-bucket/present.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bucket":"replica-bucket","key":"present.txt","exists":true}`, rec.Body.String())
}

func TestHandleReplicate_ExplicitDestination(t *testing.T) {
	env := newTestEnv(t, nil)
	env.source.Seed(interfaces.ObjectRef{Bucket: "source-bucket", Key: "a/b.txt"}, []byte("payload"))

	rec := env.do(t, http.MethodPost, "/v1/replicate",
		`{"src_bucket":"source-bucket","src_key":"a/b.txt","dest_bucket":"archive","dest_key":"renamed.txt"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	exists, err := env.destination.Exists(context.Background(), interfaces.ObjectRef{Bucket: "archive", Key: "renamed.txt"})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHandleReplicate_SourceMissing(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/replicate", `{"src_bucket":"source-bucket","src_key":"nope.txt"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[replicateResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, "not_found", resp.Error)
}

func TestHandleReplicate_InvalidRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed JSON", body: `{"src_bucket": `},
		{name: "empty source bucket", body: `{"src_bucket":"","src_key":"hello.txt"}`},
		{name: "empty source key", body: `{"src_bucket":"source-bucket","src_key":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/replicate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleReplicate_Exhausted(t *testing.T) {
	env := newTestEnv(t, &flakySource{})

	rec := env.do(t, http.MethodPost, "/v1/replicate", `{"src_bucket":"source-bucket","src_key":"hello.txt"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[replicateResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, "adapter_io", resp.Error)
}

func TestHandleReplicate_MetricsObserved(t *testing.T) {
	env := newTestEnv(t, nil)
	env.source.Seed(interfaces.ObjectRef{Bucket: "source-bucket", Key: "hello.txt"}, []byte("hello world"))

	env.do(t, http.MethodPost, "/v1/replicate", `{"src_bucket":"source-bucket","src_key":"hello.txt"}`)
	env.do(t, http.MethodPost, "/v1/replicate", `{"src_bucket":"source-bucket","src_key":"missing"}`)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Replications.WithLabelValues("replicated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Replications.WithLabelValues("not_found")))
	assert.Equal(t, float64(11), testutil.ToFloat64(env.metrics.BytesTransferred))
}

func TestObjectRoutes_BadReference(t *testing.T) {
	env := newTestEnv(t, nil)

	// A key consisting only of a trailing slash yields an empty wildcard.
	rec := env.do(t, http.MethodGet, "/v1/object/replica-bucket/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiagnosticEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")

	rec = env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDrainTogglesReadiness(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/drain", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/undrain", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_DestinationUnavailable(t *testing.T) {
	log := testLogger()
	dest := &flakySource{}

	repl, err := replicator.New(storage.NewMemoryAdapter(log), dest, interfaces.RetryPolicy{MaxRetries: 0, Delay: time.Millisecond}, log)
	require.NoError(t, err)

	handler := NewHandler(repl, dest, testDestBucket, nil, log)
	srv, err := New(&HTTPServerConfig{ListenAddr: "127.0.0.1:0", Log: log}, handler, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleReplicate_OversizedBody(t *testing.T) {
	env := newTestEnv(t, nil)

	var buf bytes.Buffer
	buf.WriteString(`{"src_bucket":"source-bucket","src_key":"`)
	buf.WriteString(strings.Repeat("x", maxBodySize))
	buf.WriteString(`"}`)

	rec := env.do(t, http.MethodPost, "/v1/replicate", buf.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
