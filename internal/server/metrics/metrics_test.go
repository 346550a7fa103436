package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCounters(t *testing.T) {
	m := New()

	m.RecordsListed.WithLabelValues("surveys").Add(3)
	m.RecordsPushed.WithLabelValues("surveys").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsListed.WithLabelValues("surveys")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsPushed.WithLabelValues("surveys")))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordsListed.WithLabelValues("x").Inc()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsListed.WithLabelValues("x")))
}

func TestUnaryServerInterceptor_ObservesMethodAndCode(t *testing.T) {
	m := New()
	icpt := m.UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: "/fieldkeeper.v1.Records/List"}
	_, err := icpt(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = icpt(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.PermissionDenied, "no")
	})
	require.Error(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(m.RPCDuration))
}

func TestHandler_ServesMetricNames(t *testing.T) {
	m := New()
	m.RecordsListed.WithLabelValues("surveys").Inc()
	m.RecordsPushed.WithLabelValues("surveys").Inc()
	m.RPCDuration.WithLabelValues("List", "OK").Observe(0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{
		"fieldkeeper_records_listed_total",
		"fieldkeeper_records_pushed_total",
		"fieldkeeper_rpc_duration_seconds",
	} {
		assert.True(t, strings.Contains(body, name), name)
	}
}
