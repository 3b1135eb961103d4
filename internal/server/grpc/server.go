// Package grpcserver exposes the registry transitions over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/convert"
	"github.com/and161185/car-registry/internal/registry"
	"github.com/and161185/car-registry/internal/service"
)

// Server wires the registry service into gRPC handlers.
type Server struct {
	registryv1.UnimplementedRegistryServer
	svc service.RegistryService
}

var _ registryv1.RegistryServer = (*Server)(nil)

// New constructs a gRPC server around svc. Register it behind AuthUnary.
func New(svc service.RegistryService) *Server {
	return &Server{svc: svc}
}

// PublicMethods lists the methods that need no authorization proof.
var PublicMethods = []string{registryv1.Registry_GetRecord_FullMethodName}

// transition parses req, runs op with the authenticated call and reports its writes.
func transition[Req, In any](
	ctx context.Context,
	req *Req,
	parse func(*Req) (In, error),
	op func(context.Context, registry.Call, In) (registry.Effects, error),
) (*registryv1.TransitionResponse, error) {
	call, ok := CallFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Unauthenticated: no authorization")
	}
	in, err := parse(req)
	if err != nil {
		return nil, toStatus(err)
	}
	eff, err := op(ctx, call, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToTransitionResponse(eff), nil
}

// --- Users ---

// RegisterUser creates the caller's account.
func (s *Server) RegisterUser(ctx context.Context, req *registryv1.RegisterUserRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromRegisterUser, s.svc.RegisterUser)
}

// VerifyUser settles a pending user's verification.
func (s *Server) VerifyUser(ctx context.Context, req *registryv1.VerifyUserRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromVerifyUser, s.svc.VerifyUser)
}

// --- Cars ---

func (s *Server) RegisterCar(ctx context.Context, req *registryv1.RegisterCarRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromRegisterCar, s.svc.RegisterCar)
}

func (s *Server) SetForSale(ctx context.Context, req *registryv1.SetForSaleRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromSetForSale, s.svc.SetForSale)
}

func (s *Server) CancelForSale(ctx context.Context, req *registryv1.CancelForSaleRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromCancelForSale, s.svc.CancelForSale)
}

// TransferCar needs the new owner's proof in x-cosigner-authorization.
func (s *Server) TransferCar(ctx context.Context, req *registryv1.TransferCarRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromTransferCar, s.svc.TransferCar)
}

// --- Sale ---

func (s *Server) RequestBuy(ctx context.Context, req *registryv1.RequestBuyRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromRequestBuy, s.svc.RequestBuy)
}

func (s *Server) AcceptBuyRequest(ctx context.Context, req *registryv1.DecideBuyRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromDecideBuy, s.svc.AcceptBuyRequest)
}

func (s *Server) RejectBuyRequest(ctx context.Context, req *registryv1.DecideBuyRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromDecideBuy, s.svc.RejectBuyRequest)
}

// --- Reports ---

func (s *Server) IssueCarReport(ctx context.Context, req *registryv1.IssueCarReportRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromIssueCarReport, s.svc.IssueCarReport)
}

func (s *Server) AcceptReport(ctx context.Context, req *registryv1.AcceptReportRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromAcceptReport, s.svc.AcceptReport)
}

func (s *Server) IssueConformityReport(ctx context.Context, req *registryv1.IssueConformityReportRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromIssueConformityReport, s.svc.IssueConformityReport)
}

func (s *Server) AcceptConformityReport(ctx context.Context, req *registryv1.AcceptConformityReportRequest) (*registryv1.TransitionResponse, error) {
	return transition(ctx, req, convert.FromAcceptConformityReport, s.svc.AcceptConformityReport)
}

// --- Snapshots ---

// GetRecord returns the committed record at an address in its persisted layout.
func (s *Server) GetRecord(ctx context.Context, req *registryv1.GetRecordRequest) (*registryv1.GetRecordResponse, error) {
	addr, err := convert.FromGetRecord(req)
	if err != nil {
		return nil, toStatus(err)
	}
	rec, err := s.svc.GetRecord(ctx, addr)
	if err != nil {
		return nil, toStatus(err)
	}
	resp, err := convert.ToGetRecordResponse(rec)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

// remoteIP returns the peer host without its port.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func bearerTokenFromMD(ctx context.Context, header string) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get(header) {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
