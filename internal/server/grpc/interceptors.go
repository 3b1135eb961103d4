package grpcserver

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/car-registry/internal/crypto"
	"github.com/and161185/car-registry/internal/guard"
	"github.com/and161185/car-registry/internal/registry"
	"github.com/and161185/car-registry/internal/service"
)

const (
	authHeader     = "authorization"
	cosignerHeader = "x-cosigner-authorization"
)

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		// metadata only, never payloads
		log.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteIP(ctx)),
		)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "Internal: internal error")
			}
		}()
		return next(ctx, req)
	}
}

// AuthUnary verifies the authorization proofs of every method not listed in public
// and stores the resulting signer set with WithCall. The primary proof comes from
// the authorization header; an optional co-signer proof comes from
// x-cosigner-authorization. Both must name the invoked method as audience.
func AuthUnary(v crypto.Verifier, public ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]bool, len(public))
	for _, m := range public {
		open[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}
		call, err := callFromMD(ctx, v, info.FullMethod)
		if err != nil {
			return nil, toStatus(err)
		}
		ctx = WithCall(ctx, call)
		ctx = service.WithPeerIP(ctx, remoteIP(ctx))
		return next(ctx, req)
	}
}

func callFromMD(ctx context.Context, v crypto.Verifier, method string) (registry.Call, error) {
	tok, err := bearerTokenFromMD(ctx, authHeader)
	if err != nil {
		return registry.Call{}, fmt.Errorf("%w: %v", crypto.ErrInvalidProof, err)
	}
	primary, err := v.VerifyProof(tok, method)
	if err != nil {
		return registry.Call{}, err
	}
	call := registry.Call{Caller: primary.Signer, Signers: guard.Signers{primary.Signer}, Scopes: guard.Scopes{}}
	if primary.Scope != "" {
		call.Scopes[primary.Signer] = primary.Scope
	}

	if tok, err := bearerTokenFromMD(ctx, cosignerHeader); err == nil {
		co, err := v.VerifyProof(tok, method)
		if err != nil {
			return registry.Call{}, fmt.Errorf("co-signer: %w", err)
		}
		if !call.Signers.Has(co.Signer) {
			call.Signers = append(call.Signers, co.Signer)
			if co.Scope != "" {
				call.Scopes[co.Signer] = co.Scope
			}
		}
	}
	return call, nil
}
