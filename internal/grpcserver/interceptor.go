package grpcserver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/clientip"
)

const (
	mdForwardedFor = "x-forwarded-for"
	mdRequestID    = "x-request-id"
)

// AuditInterceptor records one audit entry per call of every method listed
// in actions (full method name to action). Other methods pass through. The
// handler's response and error are returned unchanged; a panic is recorded
// as FAILED and re-raised.
func AuditInterceptor(recorder *audit.Recorder, actions map[string]string) grpc.UnaryServerInterceptor {
	for method, action := range actions {
		if action == "" {
			panic(fmt.Errorf("%w: gRPC method %s", audit.ErrEmptyAction, method))
		}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		action, ok := actions[info.FullMethod]
		if !ok {
			return handler(ctx, req)
		}

		var resp any
		err := recorder.Guard(ctx, callFromContext(ctx, action, info.FullMethod), func(ctx context.Context) error {
			var err error
			resp, err = handler(ctx, req)
			if err != nil {
				if scope, ok := audit.ScopeFromContext(ctx); ok {
					scope.SetMetadata("code", status.Code(err).String())
				}
			}
			return err
		})
		return resp, err
	}
}

func callFromContext(ctx context.Context, action, method string) audit.Call {
	md, _ := metadata.FromIncomingContext(ctx)

	var forwardedFor, peerAddr string
	if v := md.Get(mdForwardedFor); len(v) > 0 {
		forwardedFor = v[0]
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		peerAddr = p.Addr.String()
	}

	call := audit.Call{
		Action:   action,
		IP:       audit.StringPtr(clientip.Resolve(forwardedFor, peerAddr)),
		Metadata: map[string]any{"method": method},
	}
	if v := md.Get(mdRequestID); len(v) > 0 && v[0] != "" {
		call.RequestID = audit.StringPtr(v[0])
	}
	return call
}

// LoggingInterceptor is the diagnostic record for RPCs.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		l := logger.With(
			zap.String("rpc_method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("took", time.Since(start)),
		)
		if err != nil {
			l.Warn("RPC failed", zap.Error(err))
		} else {
			l.Debug("RPC handled")
		}
		return resp, err
	}
}
