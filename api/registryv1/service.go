package registryv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "registry.v1.Registry"

const (
	Registry_RegisterUser_FullMethodName           = "/registry.v1.Registry/RegisterUser"
	Registry_VerifyUser_FullMethodName             = "/registry.v1.Registry/VerifyUser"
	Registry_RegisterCar_FullMethodName            = "/registry.v1.Registry/RegisterCar"
	Registry_SetForSale_FullMethodName             = "/registry.v1.Registry/SetForSale"
	Registry_CancelForSale_FullMethodName          = "/registry.v1.Registry/CancelForSale"
	Registry_RequestBuy_FullMethodName             = "/registry.v1.Registry/RequestBuy"
	Registry_AcceptBuyRequest_FullMethodName       = "/registry.v1.Registry/AcceptBuyRequest"
	Registry_RejectBuyRequest_FullMethodName       = "/registry.v1.Registry/RejectBuyRequest"
	Registry_TransferCar_FullMethodName            = "/registry.v1.Registry/TransferCar"
	Registry_IssueCarReport_FullMethodName         = "/registry.v1.Registry/IssueCarReport"
	Registry_AcceptReport_FullMethodName           = "/registry.v1.Registry/AcceptReport"
	Registry_IssueConformityReport_FullMethodName  = "/registry.v1.Registry/IssueConformityReport"
	Registry_AcceptConformityReport_FullMethodName = "/registry.v1.Registry/AcceptConformityReport"
	Registry_GetRecord_FullMethodName              = "/registry.v1.Registry/GetRecord"
)

// RegistryServer is the server API for the registry service.
type RegistryServer interface {
	RegisterUser(context.Context, *RegisterUserRequest) (*TransitionResponse, error)
	VerifyUser(context.Context, *VerifyUserRequest) (*TransitionResponse, error)
	RegisterCar(context.Context, *RegisterCarRequest) (*TransitionResponse, error)
	SetForSale(context.Context, *SetForSaleRequest) (*TransitionResponse, error)
	CancelForSale(context.Context, *CancelForSaleRequest) (*TransitionResponse, error)
	RequestBuy(context.Context, *RequestBuyRequest) (*TransitionResponse, error)
	AcceptBuyRequest(context.Context, *DecideBuyRequest) (*TransitionResponse, error)
	RejectBuyRequest(context.Context, *DecideBuyRequest) (*TransitionResponse, error)
	TransferCar(context.Context, *TransferCarRequest) (*TransitionResponse, error)
	IssueCarReport(context.Context, *IssueCarReportRequest) (*TransitionResponse, error)
	AcceptReport(context.Context, *AcceptReportRequest) (*TransitionResponse, error)
	IssueConformityReport(context.Context, *IssueConformityReportRequest) (*TransitionResponse, error)
	AcceptConformityReport(context.Context, *AcceptConformityReportRequest) (*TransitionResponse, error)
	GetRecord(context.Context, *GetRecordRequest) (*GetRecordResponse, error)
}

// UnimplementedRegistryServer answers every method with Unimplemented.
type UnimplementedRegistryServer struct{}

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", name)
}

func (UnimplementedRegistryServer) RegisterUser(context.Context, *RegisterUserRequest) (*TransitionResponse, error) {
	return nil, unimplemented("RegisterUser")
}
func (UnimplementedRegistryServer) VerifyUser(context.Context, *VerifyUserRequest) (*TransitionResponse, error) {
	return nil, unimplemented("VerifyUser")
}
func (UnimplementedRegistryServer) RegisterCar(context.Context, *RegisterCarRequest) (*TransitionResponse, error) {
	return nil, unimplemented("RegisterCar")
}
func (UnimplementedRegistryServer) SetForSale(context.Context, *SetForSaleRequest) (*TransitionResponse, error) {
	return nil, unimplemented("SetForSale")
}
func (UnimplementedRegistryServer) CancelForSale(context.Context, *CancelForSaleRequest) (*TransitionResponse, error) {
	return nil, unimplemented("CancelForSale")
}
func (UnimplementedRegistryServer) RequestBuy(context.Context, *RequestBuyRequest) (*TransitionResponse, error) {
	return nil, unimplemented("RequestBuy")
}
func (UnimplementedRegistryServer) AcceptBuyRequest(context.Context, *DecideBuyRequest) (*TransitionResponse, error) {
	return nil, unimplemented("AcceptBuyRequest")
}
func (UnimplementedRegistryServer) RejectBuyRequest(context.Context, *DecideBuyRequest) (*TransitionResponse, error) {
	return nil, unimplemented("RejectBuyRequest")
}
func (UnimplementedRegistryServer) TransferCar(context.Context, *TransferCarRequest) (*TransitionResponse, error) {
	return nil, unimplemented("TransferCar")
}
func (UnimplementedRegistryServer) IssueCarReport(context.Context, *IssueCarReportRequest) (*TransitionResponse, error) {
	return nil, unimplemented("IssueCarReport")
}
func (UnimplementedRegistryServer) AcceptReport(context.Context, *AcceptReportRequest) (*TransitionResponse, error) {
	return nil, unimplemented("AcceptReport")
}
func (UnimplementedRegistryServer) IssueConformityReport(context.Context, *IssueConformityReportRequest) (*TransitionResponse, error) {
	return nil, unimplemented("IssueConformityReport")
}
func (UnimplementedRegistryServer) AcceptConformityReport(context.Context, *AcceptConformityReportRequest) (*TransitionResponse, error) {
	return nil, unimplemented("AcceptConformityReport")
}
func (UnimplementedRegistryServer) GetRecord(context.Context, *GetRecordRequest) (*GetRecordResponse, error) {
	return nil, unimplemented("GetRecord")
}

// RegisterRegistryServer registers srv on s.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&Registry_ServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(RegistryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RegistryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RegistryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Registry_ServiceDesc describes registry.v1.Registry for grpc.Server.
var Registry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RegisterUser", RegistryServer.RegisterUser),
		unary("VerifyUser", RegistryServer.VerifyUser),
		unary("RegisterCar", RegistryServer.RegisterCar),
		unary("SetForSale", RegistryServer.SetForSale),
		unary("CancelForSale", RegistryServer.CancelForSale),
		unary("RequestBuy", RegistryServer.RequestBuy),
		unary("AcceptBuyRequest", RegistryServer.AcceptBuyRequest),
		unary("RejectBuyRequest", RegistryServer.RejectBuyRequest),
		unary("TransferCar", RegistryServer.TransferCar),
		unary("IssueCarReport", RegistryServer.IssueCarReport),
		unary("AcceptReport", RegistryServer.AcceptReport),
		unary("IssueConformityReport", RegistryServer.IssueConformityReport),
		unary("AcceptConformityReport", RegistryServer.AcceptConformityReport),
		unary("GetRecord", RegistryServer.GetRecord),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "registry/v1/registry.json",
}

// RegistryClient is the client API for the registry service.
type RegistryClient interface {
	RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	VerifyUser(ctx context.Context, in *VerifyUserRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	RegisterCar(ctx context.Context, in *RegisterCarRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	SetForSale(ctx context.Context, in *SetForSaleRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	CancelForSale(ctx context.Context, in *CancelForSaleRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	RequestBuy(ctx context.Context, in *RequestBuyRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	AcceptBuyRequest(ctx context.Context, in *DecideBuyRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	RejectBuyRequest(ctx context.Context, in *DecideBuyRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	TransferCar(ctx context.Context, in *TransferCarRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	IssueCarReport(ctx context.Context, in *IssueCarReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	AcceptReport(ctx context.Context, in *AcceptReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	IssueConformityReport(ctx context.Context, in *IssueConformityReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	AcceptConformityReport(ctx context.Context, in *AcceptConformityReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
	GetRecord(ctx context.Context, in *GetRecordRequest, opts ...grpc.CallOption) (*GetRecordResponse, error)
}

type registryClient struct {
	cc grpc.ClientConnInterface
}

// NewRegistryClient returns a client that speaks the JSON codec over cc.
func NewRegistryClient(cc grpc.ClientConnInterface) RegistryClient {
	return &registryClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_RegisterUser_FullMethodName, in, opts)
}
func (c *registryClient) VerifyUser(ctx context.Context, in *VerifyUserRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_VerifyUser_FullMethodName, in, opts)
}
func (c *registryClient) RegisterCar(ctx context.Context, in *RegisterCarRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_RegisterCar_FullMethodName, in, opts)
}
func (c *registryClient) SetForSale(ctx context.Context, in *SetForSaleRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_SetForSale_FullMethodName, in, opts)
}
func (c *registryClient) CancelForSale(ctx context.Context, in *CancelForSaleRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_CancelForSale_FullMethodName, in, opts)
}
func (c *registryClient) RequestBuy(ctx context.Context, in *RequestBuyRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_RequestBuy_FullMethodName, in, opts)
}
func (c *registryClient) AcceptBuyRequest(ctx context.Context, in *DecideBuyRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_AcceptBuyRequest_FullMethodName, in, opts)
}
func (c *registryClient) RejectBuyRequest(ctx context.Context, in *DecideBuyRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_RejectBuyRequest_FullMethodName, in, opts)
}
func (c *registryClient) TransferCar(ctx context.Context, in *TransferCarRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_TransferCar_FullMethodName, in, opts)
}
func (c *registryClient) IssueCarReport(ctx context.Context, in *IssueCarReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_IssueCarReport_FullMethodName, in, opts)
}
func (c *registryClient) AcceptReport(ctx context.Context, in *AcceptReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_AcceptReport_FullMethodName, in, opts)
}
func (c *registryClient) IssueConformityReport(ctx context.Context, in *IssueConformityReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_IssueConformityReport_FullMethodName, in, opts)
}
func (c *registryClient) AcceptConformityReport(ctx context.Context, in *AcceptConformityReportRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, Registry_AcceptConformityReport_FullMethodName, in, opts)
}
func (c *registryClient) GetRecord(ctx context.Context, in *GetRecordRequest, opts ...grpc.CallOption) (*GetRecordResponse, error) {
	return invoke[GetRecordResponse](ctx, c.cc, Registry_GetRecord_FullMethodName, in, opts)
}
