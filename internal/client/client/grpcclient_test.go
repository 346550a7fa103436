package client

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeServer struct {
	tokens   []string
	lastList *rpc.ListRequest
	lastPush *rpc.PushRequest
	err      error
	ping     string
}

func (f *fakeServer) capture(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.tokens = append(f.tokens, md.Get(common.AccessTokenHeaderName)...)
}

func (f *fakeServer) List(ctx context.Context, req *rpc.ListRequest) (*rpc.ListResponse, error) {
	f.capture(ctx)
	f.lastList = req
	if f.err != nil {
		return nil, f.err
	}
	return &rpc.ListResponse{Records: []rpc.Record{{ID: "s1", TenantID: req.TenantID, UpdatedAt: "2024-01-15T10:00:01.000Z"}}}, nil
}

func (f *fakeServer) Push(ctx context.Context, req *rpc.PushRequest) (*rpc.PushResponse, error) {
	f.capture(ctx)
	f.lastPush = req
	if f.err != nil {
		return nil, f.err
	}
	return &rpc.PushResponse{Records: req.Records}, nil
}

func (f *fakeServer) Ping(ctx context.Context, _ *rpc.PingRequest) (*rpc.PingResponse, error) {
	f.capture(ctx)
	return &rpc.PingResponse{Status: f.ping}, nil
}

func newTestClient(t *testing.T, srv rpc.RecordsServer, token string) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterRecordsServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClient_ListSendsTokenAndFilter(t *testing.T) {
	f := &fakeServer{ping: "OK"}
	c := newTestClient(t, f, "tok-1")
	ctx := context.Background()

	recs, err := c.List(ctx, "surveys", rpc.ListOptions{TenantID: "tenant-1", Filter: rpc.DeltaFilter("2024-01-15T10:00:00.000Z")})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "tenant-1", recs[0].TenantID)

	assert.Equal(t, "surveys", f.lastList.Table)
	require.NotNil(t, f.lastList.Filter)
	assert.Equal(t, "2024-01-15T10:00:00.000Z", f.lastList.Filter.UpdatedAt.GT)
	assert.Equal(t, []string{"tok-1"}, f.tokens)
}

func TestGRPCClient_SetAccessToken(t *testing.T) {
	f := &fakeServer{ping: "OK"}
	c := newTestClient(t, f, "")
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	c.SetAccessToken("tok-2")
	require.NoError(t, c.Ping(ctx))

	assert.Equal(t, []string{"tok-2"}, f.tokens, "empty token must not be sent")
}

func TestGRPCClient_PingNotOK(t *testing.T) {
	c := newTestClient(t, &fakeServer{ping: "DEGRADED"}, "")
	require.ErrorIs(t, c.Ping(context.Background()), common.ErrUnavailable)
}

func TestGRPCClient_Push(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f, "tok")

	out, err := c.Push(context.Background(), "surveys", "t1", []rpc.Record{{ID: "s1", Data: []byte(`{"title":"x"}`)}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "t1", f.lastPush.TenantID)
	assert.JSONEq(t, `{"title":"x"}`, string(out[0].Data))
}

func TestGRPCClient_MapsStatusCodes(t *testing.T) {
	cases := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, common.ErrUnauthorized},
		{codes.PermissionDenied, common.ErrTenantDenied},
		{codes.Unavailable, common.ErrUnavailable},
		{codes.DeadlineExceeded, common.ErrUnavailable},
		{codes.NotFound, common.ErrNotFound},
		{codes.InvalidArgument, common.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.code.String(), func(t *testing.T) {
			c := newTestClient(t, &fakeServer{err: status.Error(tc.code, "boom")}, "")
			_, err := c.List(context.Background(), "surveys", rpc.ListOptions{})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMapError_Other(t *testing.T) {
	c := &GRPCClient{}
	require.NoError(t, c.mapError(nil))

	err := c.mapError(status.Error(codes.Internal, "db down"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc error")
	assert.False(t, errors.Is(err, common.ErrUnavailable))
}
