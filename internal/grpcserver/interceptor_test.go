package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
)

type memStore struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (m *memStore) InsertAndCommit(_ context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) all() []*audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.Entry(nil), m.entries...)
}

const updateMethod = "/apiaudit.v1.Users/Update"

var testActions = map[string]string{updateMethod: "USER_UPDATED"}

func incomingContext() context.Context {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		"x-forwarded-for", "1.2.3.4, 5.6.7.8",
		"x-request-id", "req-7",
	))
	return peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 5000}})
}

func TestAuditInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: updateMethod}

	t.Run("success", func(t *testing.T) {
		store := &memStore{}
		interceptor := AuditInterceptor(audit.NewRecorder(store), testActions)

		resp, err := interceptor(incomingContext(), "req", info, func(ctx context.Context, req any) (any, error) {
			return "resp", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "resp", resp)

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "USER_UPDATED", entries[0].Action)
		assert.Equal(t, audit.StatusSuccess, entries[0].Status)
		assert.Equal(t, "1.2.3.4", *entries[0].IP)
		assert.Equal(t, "req-7", *entries[0].RequestID)
		assert.Equal(t, updateMethod, entries[0].Metadata["method"])
	})

	t.Run("error is returned unchanged", func(t *testing.T) {
		store := &memStore{}
		interceptor := AuditInterceptor(audit.NewRecorder(store), testActions)
		rpcErr := status.Error(codes.NotFound, "user not found")

		_, err := interceptor(incomingContext(), "req", info, func(ctx context.Context, req any) (any, error) {
			return nil, rpcErr
		})
		assert.Same(t, rpcErr, err)

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.StatusFailed, entries[0].Status)
		assert.Equal(t, "NotFound", entries[0].Metadata["code"])
	})

	t.Run("panic is recorded and re-raised", func(t *testing.T) {
		store := &memStore{}
		interceptor := AuditInterceptor(audit.NewRecorder(store), testActions)

		assert.PanicsWithValue(t, "nil map", func() {
			_, _ = interceptor(incomingContext(), "req", info, func(ctx context.Context, req any) (any, error) {
				panic("nil map")
			})
		})

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.StatusFailed, entries[0].Status)
	})

	t.Run("peer without forwarding header", func(t *testing.T) {
		store := &memStore{}
		interceptor := AuditInterceptor(audit.NewRecorder(store), testActions)
		ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 5000}})

		_, err := interceptor(ctx, "req", info, func(ctx context.Context, req any) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "10.0.0.9", *entries[0].IP)
		assert.Nil(t, entries[0].RequestID)
	})

	t.Run("unlisted method is not audited", func(t *testing.T) {
		store := &memStore{}
		interceptor := AuditInterceptor(audit.NewRecorder(store), testActions)

		_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/other/Method"},
			func(ctx context.Context, req any) (any, error) { return nil, errors.New("x") })
		assert.Error(t, err)
		assert.Empty(t, store.all())
	})
}

func TestAuditInterceptor_EmptyAction(t *testing.T) {
	recorder := audit.NewRecorder(&memStore{})

	assert.PanicsWithError(t, "audit action is empty: gRPC method /svc.Orders/Create", func() {
		AuditInterceptor(recorder, map[string]string{"/svc.Orders/Create": ""})
	})
}

func TestServer_HealthCheckAudited(t *testing.T) {
	store := &memStore{}
	srv := NewServer(audit.NewRecorder(store), map[string]string{
		healthpb.Health_Check_FullMethodName: "HEALTH_CHECKED",
	}, zap.NewNop())

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = srv.Serve(lis)
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "x-forwarded-for", "203.0.113.5", "x-request-id", "probe-1")

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	entries := store.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "HEALTH_CHECKED", entries[0].Action)
	assert.Equal(t, "203.0.113.5", *entries[0].IP)
	assert.Equal(t, "probe-1", *entries[0].RequestID)
}
