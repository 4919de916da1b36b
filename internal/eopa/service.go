package eopa

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (ApprovedOrder, []OrderLine, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the approval lifecycle the procurement pipeline consumes.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the EOPA service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateOrderInput describes creation payload.
type CreateOrderInput struct {
	Number string
	Note   string
	Lines  []OrderLineInput
}

// OrderLineInput describes one requested medicine.
type OrderLineInput struct {
	MedicineID int64
	Quantity   decimal.Decimal
	Unit       string
}

// CreateOrder persists an order in PENDING state.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (ApprovedOrder, error) {
	if len(input.Lines) == 0 {
		return ApprovedOrder{}, shared.NewDomainError(shared.CodeValidation, "order requires at least one line")
	}
	if input.Number == "" {
		input.Number = fmt.Sprintf("EOPA-%d", time.Now().UnixNano())
	}
	order := ApprovedOrder{Number: input.Number, Status: StatusPending, Note: input.Note}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		for _, line := range input.Lines {
			if line.MedicineID == 0 || !line.Quantity.IsPositive() {
				return shared.NewDomainError(shared.CodeValidation, "order line requires medicine and positive quantity")
			}
			if err := tx.InsertLine(ctx, OrderLine{OrderID: id, MedicineID: line.MedicineID, Quantity: line.Quantity, Unit: line.Unit}); err != nil {
				return err
			}
		}
		order.ID = id
		return nil
	})
	if err != nil {
		return ApprovedOrder{}, err
	}
	s.recordAudit(ctx, "EOPA_CREATE", order.ID, map[string]any{"number": order.Number})
	return order, nil
}

// Approve transitions PENDING to APPROVED.
func (s *Service) Approve(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusApproved, "EOPA_APPROVE")
}

// Reject transitions PENDING to REJECTED.
func (s *Service) Reject(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusRejected, "EOPA_REJECT")
}

// Get returns the order header and lines.
func (s *Service) Get(ctx context.Context, id int64) (ApprovedOrder, []OrderLine, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) transition(ctx context.Context, id int64, target Status, action string) error {
	order, _, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != StatusPending {
		return shared.NewDomainError(shared.CodeValidation, "order %s is %s, only PENDING orders can transition", order.Number, order.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, target)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, action, id, map[string]any{"number": order.Number, "status": target})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "eopa", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
