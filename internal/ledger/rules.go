// Package ledger holds the Pontos Cósmicos business rules: the one-time
// onboarding grant, the daily bonus streak, spending and crediting.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"guia_service/internal/store"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrAlreadyOnboarded   = errors.New("onboarding already completed")
	ErrDailyBonusClaimed  = errors.New("daily bonus already claimed today")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

type Rules struct {
	OnboardingBonus    int64
	DailyBase          int64
	DailyStreakStep    int64
	DailyStreakMaxDays int64
	Location           *time.Location
}

// Profile is what the user fills in during onboarding.
type Profile struct {
	DisplayName string
	BirthDate   string
	BirthTime   string
	BirthPlace  string
	ZodiacSign  string
}

// DailyReward returns the bonus for the given streak length. The streak
// stops adding to the reward after DailyStreakMaxDays.
func (r Rules) DailyReward(streak int64) int64 {
	extra := streak - 1
	if extra < 0 {
		extra = 0
	}
	if limit := r.DailyStreakMaxDays - 1; extra > limit {
		extra = limit
	}
	return r.DailyBase + r.DailyStreakStep*extra
}

func (r Rules) day(t time.Time) time.Time {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayKey formats the calendar day of t in the rules' timezone.
func (r Rules) DayKey(t time.Time) string {
	return r.day(t).Format("2006-01-02")
}

// Onboard applies the onboarding grant. It refuses to run twice.
func (r Rules) Onboard(p Profile) store.Mutation {
	return func(u *store.User) (*store.Transaction, error) {
		if u.OnboardingCompleted {
			return nil, ErrAlreadyOnboarded
		}
		if p.DisplayName != "" {
			u.DisplayName = p.DisplayName
		}
		u.BirthDate = p.BirthDate
		u.BirthTime = p.BirthTime
		u.BirthPlace = p.BirthPlace
		u.ZodiacSign = p.ZodiacSign
		u.OnboardingCompleted = true
		u.Points += r.OnboardingBonus

		return &store.Transaction{
			Type:        store.TxOnboarding,
			Amount:      r.OnboardingBonus,
			Description: "Bônus de boas-vindas",
		}, nil
	}
}

// ClaimDaily grants the daily bonus for the day containing now. Claiming on
// consecutive days grows the streak; skipping a day resets it to one.
func (r Rules) ClaimDaily(now time.Time) store.Mutation {
	return func(u *store.User) (*store.Transaction, error) {
		today := r.day(now)
		streak := int64(1)
		if !u.LastDailyBonus.IsZero() {
			last := r.day(u.LastDailyBonus)
			switch {
			case !last.Before(today):
				return nil, ErrDailyBonusClaimed
			case last.AddDate(0, 0, 1).Equal(today):
				streak = u.DailyStreak + 1
			}
		}

		reward := r.DailyReward(streak)
		u.DailyStreak = streak
		u.LastDailyBonus = now
		u.Points += reward

		return &store.Transaction{
			Type:        store.TxDailyBonus,
			Amount:      reward,
			Description: fmt.Sprintf("Bônus diário (sequência de %d dias)", streak),
			Reference:   r.DayKey(now),
		}, nil
	}
}

// Spend deducts cost, failing without changes if the balance is too low.
func Spend(cost int64, reference, description string) store.Mutation {
	return func(u *store.User) (*store.Transaction, error) {
		if cost <= 0 {
			return nil, ErrInvalidAmount
		}
		if u.Points < cost {
			return nil, fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientPoints, u.Points, cost)
		}
		u.Points -= cost
		return &store.Transaction{
			Type:        store.TxSpend,
			Amount:      -cost,
			Description: description,
			Reference:   reference,
		}, nil
	}
}

func Credit(amount int64, txType store.TransactionType, reference, description string) store.Mutation {
	return func(u *store.User) (*store.Transaction, error) {
		if amount <= 0 {
			return nil, ErrInvalidAmount
		}
		u.Points += amount
		return &store.Transaction{
			Type:        txType,
			Amount:      amount,
			Description: description,
			Reference:   reference,
		}, nil
	}
}
