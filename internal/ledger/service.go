package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"guia_service/internal/store"
)

type Service struct {
	store store.Store
	rules Rules
	now   func() time.Time
	log   *zap.Logger
}

func NewService(s store.Store, rules Rules, log *zap.Logger) *Service {
	return &Service{store: s, rules: rules, now: time.Now, log: log}
}

// WithClock overrides the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Rules() Rules {
	return s.rules
}

func (s *Service) Balance(ctx context.Context, uid string) (int64, error) {
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// CompleteOnboarding saves the profile and grants the welcome bonus once.
func (s *Service) CompleteOnboarding(ctx context.Context, uid string, p Profile) (*store.User, error) {
	u, tx, err := s.store.ApplyToUser(ctx, uid, "onboarding", s.rules.Onboard(p))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrAlreadyOnboarded
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("onboarding completed",
		zap.String("uid", uid),
		zap.Int64("bonus", tx.Amount),
		zap.Int64("balance", u.Points))
	return u, nil
}

type DailyBonusResult struct {
	Reward  int64 `json:"reward"`
	Streak  int64 `json:"streak"`
	Balance int64 `json:"balance"`
}

func (s *Service) ClaimDailyBonus(ctx context.Context, uid string) (*DailyBonusResult, error) {
	now := s.now()
	txID := "daily-" + s.rules.DayKey(now)

	u, tx, err := s.store.ApplyToUser(ctx, uid, txID, s.rules.ClaimDaily(now))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrDailyBonusClaimed
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("daily bonus claimed",
		zap.String("uid", uid),
		zap.Int64("reward", tx.Amount),
		zap.Int64("streak", u.DailyStreak))
	return &DailyBonusResult{Reward: tx.Amount, Streak: u.DailyStreak, Balance: u.Points}, nil
}

// Spend deducts cost from the user's balance. The returned transaction can be
// passed to Refund if the paid-for work fails.
func (s *Service) Spend(ctx context.Context, uid string, cost int64, reference, description string) (*store.Transaction, error) {
	_, tx, err := s.store.ApplyToUser(ctx, uid, "", Spend(cost, reference, description))
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Credit adds points. A non-empty idempotencyKey makes repeated calls with
// the same key fail with store.ErrDuplicate instead of crediting twice.
func (s *Service) Credit(ctx context.Context, uid string, amount int64, txType store.TransactionType, reference, description, idempotencyKey string) (*store.User, error) {
	u, _, err := s.store.ApplyToUser(ctx, uid, idempotencyKey, Credit(amount, txType, reference, description))
	if err != nil {
		return nil, err
	}
	s.log.Info("points credited",
		zap.String("uid", uid),
		zap.String("type", string(txType)),
		zap.Int64("amount", amount),
		zap.String("reference", reference))
	return u, nil
}

// Refund gives back the points of a spend transaction. Refunding the same
// spend twice is a no-op.
func (s *Service) Refund(ctx context.Context, uid string, spend *store.Transaction) (*store.User, error) {
	if spend == nil || spend.Type != store.TxSpend {
		return nil, fmt.Errorf("refund: not a spend transaction")
	}
	u, err := s.Credit(ctx, uid, -spend.Amount, store.TxRefund, spend.Reference,
		"Estorno: "+spend.Description, "refund-"+spend.ID)
	if errors.Is(err, store.ErrDuplicate) {
		return s.store.GetUser(ctx, uid)
	}
	return u, err
}

func (s *Service) History(ctx context.Context, uid string, limit int) ([]store.Transaction, error) {
	return s.store.ListTransactions(ctx, uid, limit)
}
