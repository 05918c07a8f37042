package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory-purchase/internal/adapter/handler/pb"
	"github.com/rl1809/inventory-purchase/internal/core/domain"
)

type GRPCHandler struct {
	pb.UnimplementedPurchaseServiceServer
	purchases PurchaseProcessor
	inventory InventoryManager
}

func NewGRPCHandler(purchases PurchaseProcessor, inventory InventoryManager) *GRPCHandler {
	return &GRPCHandler{purchases: purchases, inventory: inventory}
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *pb.PurchaseRequest) (*pb.PurchaseResponse, error) {
	result, err := h.purchases.ProcessPurchase(ctx, domain.PurchaseRequest{
		ProductID: req.GetProductId(),
		Quantity:  int(req.GetQuantity()),
		RequestID: req.GetRequestId(),
	})
	if err != nil {
		return nil, toGRPCError(err)
	}

	return &pb.PurchaseResponse{
		Purchase:           toPBPurchase(result.Purchase),
		Product:            toPBProduct(result.Product),
		Inventory:          toPBInventory(result.Inventory),
		UnitPrice:          result.UnitPrice.StringFixed(2),
		TotalPrice:         result.TotalPrice.StringFixed(2),
		RemainingAvailable: int32(result.RemainingAvailable),
	}, nil
}

func (h *GRPCHandler) GetPurchase(ctx context.Context, req *pb.GetPurchaseRequest) (*pb.Purchase, error) {
	p, err := h.inventory.GetPurchase(ctx, req.GetId())
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toPBPurchase(*p), nil
}

func (h *GRPCHandler) GetInventory(ctx context.Context, req *pb.GetInventoryRequest) (*pb.InventoryResponse, error) {
	details, err := h.inventory.GetInventory(ctx, req.GetProductId())
	if err != nil {
		return nil, toGRPCError(err)
	}

	resp := &pb.InventoryResponse{Inventory: toPBInventory(details.Inventory)}
	if details.Product != nil {
		resp.Product = toPBProduct(*details.Product)
	}
	return resp, nil
}

// UnaryLogger logs every unary call with its status code.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

func toPBPurchase(p domain.Purchase) *pb.Purchase {
	return &pb.Purchase{
		Id:           p.ID,
		ProductId:    p.ProductID,
		Quantity:     int32(p.Quantity),
		TotalPrice:   p.TotalPrice.StringFixed(2),
		PurchaseDate: p.PurchaseDate.Format(time.RFC3339Nano),
		Status:       string(p.Status),
	}
}

func toPBProduct(p domain.Product) *pb.Product {
	return &pb.Product{
		Id:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
	}
}

func toPBInventory(inv domain.Inventory) *pb.Inventory {
	return &pb.Inventory{
		ProductId:         inv.ProductID,
		Quantity:          int32(inv.Quantity),
		ReservedQuantity:  int32(inv.ReservedQuantity),
		AvailableQuantity: int32(inv.Available()),
		UpdatedAt:         inv.UpdatedAt.Format(time.RFC3339Nano),
	}
}
