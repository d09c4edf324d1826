// Package payments sells point packages. Orders are created before the
// provider is called and credited exactly once when the provider confirms.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"guia_service/internal/ledger"
	"guia_service/internal/store"
)

var (
	ErrUnknownPackage    = errors.New("unknown package")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrAmountMismatch    = errors.New("paid amount does not match order")
	ErrMethodUnavailable = errors.New("payment method unavailable")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
)

const (
	MethodCard = "card"
	MethodPix  = "pix"
)

type Package struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Points     int64  `json:"points"`
	PriceCents int64  `json:"priceCents"`
}

// Checkout is what the client needs to pay. Card checkouts carry a hosted
// page URL, PIX checkouts a copy-and-paste code and a QR image.
type Checkout struct {
	OrderID     string    `json:"orderId"`
	Method      string    `json:"method"`
	URL         string    `json:"url,omitempty"`
	PixCode     string    `json:"pixCode,omitempty"`
	QRCodeImage string    `json:"qrCodeImage,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
	ExternalID  string    `json:"-"`
}

type CheckoutRequest struct {
	OrderID     string
	Email       string
	Package     Package
	AmountCents int64
}

type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// Confirmation is a verified "this order was paid" signal from a provider.
type Confirmation struct {
	OrderID     string `json:"orderId"`
	Provider    string `json:"provider"`
	ExternalID  string `json:"externalId"`
	AmountCents int64  `json:"amountCents"`
}

// Dispatcher hands confirmations off for fulfilment.
type Dispatcher interface {
	Dispatch(ctx context.Context, c Confirmation) error
}

type Service struct {
	store     store.Store
	ledger    *ledger.Service
	packages  []Package
	providers map[string]Provider
	now       func() time.Time
	log       *zap.Logger
}

func NewService(s store.Store, l *ledger.Service, packages []Package, log *zap.Logger) *Service {
	return &Service{
		store:     s,
		ledger:    l,
		packages:  packages,
		providers: map[string]Provider{},
		now:       time.Now,
		log:       log,
	}
}

// RegisterProvider enables a payment method. Methods without a provider fail
// with ErrMethodUnavailable.
func (s *Service) RegisterProvider(method string, p Provider) {
	s.providers[method] = p
}

func (s *Service) Packages() []Package {
	return append([]Package(nil), s.packages...)
}

func (s *Service) Package(id string) (Package, error) {
	for _, p := range s.packages {
		if p.ID == id {
			return p, nil
		}
	}
	return Package{}, fmt.Errorf("%w: %q", ErrUnknownPackage, id)
}

func (s *Service) CreateCheckout(ctx context.Context, uid, email, packageID, method string) (*Checkout, error) {
	pkg, err := s.Package(packageID)
	if err != nil {
		return nil, err
	}
	provider, ok := s.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMethodUnavailable, method)
	}

	order := &store.Order{
		ID:          uuid.NewString(),
		UID:         uid,
		PackageID:   pkg.ID,
		Points:      pkg.Points,
		AmountCents: pkg.PriceCents,
		Method:      method,
		Status:      store.OrderPending,
		CreatedAt:   s.now(),
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	checkout, err := provider.CreateCheckout(ctx, CheckoutRequest{
		OrderID:     order.ID,
		Email:       email,
		Package:     pkg,
		AmountCents: order.AmountCents,
	})
	if err != nil {
		s.log.Error("checkout creation failed",
			zap.String("orderId", order.ID),
			zap.String("method", method),
			zap.Error(err))
		return nil, fmt.Errorf("create %s checkout: %w", method, err)
	}
	checkout.OrderID = order.ID
	checkout.Method = method

	s.log.Info("checkout created",
		zap.String("uid", uid),
		zap.String("orderId", order.ID),
		zap.String("package", pkg.ID),
		zap.String("method", method),
		zap.String("externalId", checkout.ExternalID))
	return checkout, nil
}

// Fulfill credits a paid order. Replays of the same confirmation are no-ops.
func (s *Service) Fulfill(ctx context.Context, c Confirmation) error {
	order, err := s.store.GetOrder(ctx, c.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, c.OrderID)
	}
	if err != nil {
		return err
	}
	if order.Status == store.OrderPaid {
		s.log.Info("order already paid", zap.String("orderId", order.ID))
		return nil
	}
	if c.AmountCents != order.AmountCents {
		return fmt.Errorf("%w: order %s expects %d, got %d", ErrAmountMismatch, order.ID, order.AmountCents, c.AmountCents)
	}

	key := "order-" + order.ID
	_, err = s.ledger.Credit(ctx, order.UID, order.Points, store.TxPurchase, key,
		fmt.Sprintf("Compra de %d pontos", order.Points), key)
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("credit order %s: %w", order.ID, err)
	}

	if err := s.store.MarkOrderPaid(ctx, order.ID, c.ExternalID, s.now()); err != nil {
		return fmt.Errorf("mark order %s paid: %w", order.ID, err)
	}
	s.log.Info("order fulfilled",
		zap.String("orderId", order.ID),
		zap.String("uid", order.UID),
		zap.String("provider", c.Provider),
		zap.Int64("points", order.Points))
	return nil
}

// Dispatch fulfils inline, which makes Service a Dispatcher when no queue is
// configured.
func (s *Service) Dispatch(ctx context.Context, c Confirmation) error {
	return s.Fulfill(ctx, c)
}

// IsPermanent reports whether retrying a failed fulfilment can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnknownOrder) || errors.Is(err, ErrAmountMismatch)
}
