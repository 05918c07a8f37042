package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	PurchaseService_Purchase_FullMethodName     = "/inventory.v1.PurchaseService/Purchase"
	PurchaseService_GetPurchase_FullMethodName  = "/inventory.v1.PurchaseService/GetPurchase"
	PurchaseService_GetInventory_FullMethodName = "/inventory.v1.PurchaseService/GetInventory"
)

type PurchaseServiceClient interface {
	Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error)
	GetPurchase(ctx context.Context, in *GetPurchaseRequest, opts ...grpc.CallOption) (*Purchase, error)
	GetInventory(ctx context.Context, in *GetInventoryRequest, opts ...grpc.CallOption) (*InventoryResponse, error)
}

type purchaseServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPurchaseServiceClient(cc grpc.ClientConnInterface) PurchaseServiceClient {
	return &purchaseServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
}

func (c *purchaseServiceClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error) {
	out := new(PurchaseResponse)
	if err := c.cc.Invoke(ctx, PurchaseService_Purchase_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *purchaseServiceClient) GetPurchase(ctx context.Context, in *GetPurchaseRequest, opts ...grpc.CallOption) (*Purchase, error) {
	out := new(Purchase)
	if err := c.cc.Invoke(ctx, PurchaseService_GetPurchase_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *purchaseServiceClient) GetInventory(ctx context.Context, in *GetInventoryRequest, opts ...grpc.CallOption) (*InventoryResponse, error) {
	out := new(InventoryResponse)
	if err := c.cc.Invoke(ctx, PurchaseService_GetInventory_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// PurchaseServiceServer must embed UnimplementedPurchaseServiceServer.
type PurchaseServiceServer interface {
	Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	GetPurchase(context.Context, *GetPurchaseRequest) (*Purchase, error)
	GetInventory(context.Context, *GetInventoryRequest) (*InventoryResponse, error)
	mustEmbedUnimplementedPurchaseServiceServer()
}

type UnimplementedPurchaseServiceServer struct{}

func (UnimplementedPurchaseServiceServer) Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Purchase not implemented")
}

func (UnimplementedPurchaseServiceServer) GetPurchase(context.Context, *GetPurchaseRequest) (*Purchase, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPurchase not implemented")
}

func (UnimplementedPurchaseServiceServer) GetInventory(context.Context, *GetInventoryRequest) (*InventoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetInventory not implemented")
}

func (UnimplementedPurchaseServiceServer) mustEmbedUnimplementedPurchaseServiceServer() {}

func RegisterPurchaseServiceServer(s grpc.ServiceRegistrar, srv PurchaseServiceServer) {
	s.RegisterService(&PurchaseService_ServiceDesc, srv)
}

func _PurchaseService_Purchase_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PurchaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PurchaseServiceServer).Purchase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PurchaseService_Purchase_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PurchaseServiceServer).Purchase(ctx, req.(*PurchaseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PurchaseService_GetPurchase_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetPurchaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PurchaseServiceServer).GetPurchase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PurchaseService_GetPurchase_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PurchaseServiceServer).GetPurchase(ctx, req.(*GetPurchaseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PurchaseService_GetInventory_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetInventoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PurchaseServiceServer).GetInventory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PurchaseService_GetInventory_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PurchaseServiceServer).GetInventory(ctx, req.(*GetInventoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var PurchaseService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "inventory.v1.PurchaseService",
	HandlerType: (*PurchaseServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Purchase", Handler: _PurchaseService_Purchase_Handler},
		{MethodName: "GetPurchase", Handler: _PurchaseService_GetPurchase_Handler},
		{MethodName: "GetInventory", Handler: _PurchaseService_GetInventory_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pb/purchase.go",
}
