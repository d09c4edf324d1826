// Package store persists users, their points ledger, readings, journal
// entries, rituals and payment orders.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by ApplyToUser when a transaction with the
	// same id was already recorded.
	ErrDuplicate = errors.New("duplicate transaction")
)

type TransactionType string

const (
	TxOnboarding TransactionType = "onboarding"
	TxDailyBonus TransactionType = "daily_bonus"
	TxSpend      TransactionType = "spend"
	TxRefund     TransactionType = "refund"
	TxPurchase   TransactionType = "purchase"
	TxAdmin      TransactionType = "admin"
)

type User struct {
	UID                 string    `firestore:"uid" json:"uid"`
	Email               string    `firestore:"email" json:"email"`
	DisplayName         string    `firestore:"displayName" json:"displayName"`
	BirthDate           string    `firestore:"birthDate" json:"birthDate,omitempty"`
	BirthTime           string    `firestore:"birthTime" json:"birthTime,omitempty"`
	BirthPlace          string    `firestore:"birthPlace" json:"birthPlace,omitempty"`
	ZodiacSign          string    `firestore:"zodiacSign" json:"zodiacSign,omitempty"`
	Points              int64     `firestore:"points" json:"points"`
	OnboardingCompleted bool      `firestore:"onboardingCompleted" json:"onboardingCompleted"`
	DailyStreak         int64     `firestore:"dailyStreak" json:"dailyStreak"`
	LastDailyBonus      time.Time `firestore:"lastDailyBonus" json:"lastDailyBonus"`
	CreatedAt           time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time `firestore:"updatedAt" json:"updatedAt"`
}

type Transaction struct {
	ID           string          `firestore:"-" json:"id"`
	Type         TransactionType `firestore:"type" json:"type"`
	Amount       int64           `firestore:"amount" json:"amount"`
	BalanceAfter int64           `firestore:"balanceAfter" json:"balanceAfter"`
	Description  string          `firestore:"description" json:"description"`
	Reference    string          `firestore:"reference" json:"reference,omitempty"`
	CreatedAt    time.Time       `firestore:"createdAt" json:"createdAt"`
}

type Reading struct {
	ID        string                 `firestore:"-" json:"id"`
	Tool      string                 `firestore:"tool" json:"tool"`
	Input     map[string]string      `firestore:"input" json:"input"`
	Result    map[string]interface{} `firestore:"result" json:"result"`
	Cost      int64                  `firestore:"cost" json:"cost"`
	Fallback  bool                   `firestore:"fallback" json:"fallback"`
	CreatedAt time.Time              `firestore:"createdAt" json:"createdAt"`
}

type JournalEntry struct {
	ID        string    `firestore:"-" json:"id"`
	Title     string    `firestore:"title" json:"title"`
	Content   string    `firestore:"content" json:"content"`
	Mood      string    `firestore:"mood" json:"mood,omitempty"`
	Tags      []string  `firestore:"tags" json:"tags,omitempty"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

type Ritual struct {
	ID          string    `firestore:"-" json:"id"`
	Name        string    `firestore:"name" json:"name"`
	Intention   string    `firestore:"intention" json:"intention,omitempty"`
	Notes       string    `firestore:"notes" json:"notes,omitempty"`
	CompletedAt time.Time `firestore:"completedAt" json:"completedAt"`
}

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
)

type Order struct {
	ID          string      `firestore:"-" json:"id"`
	UID         string      `firestore:"uid" json:"uid"`
	PackageID   string      `firestore:"packageId" json:"packageId"`
	Points      int64       `firestore:"points" json:"points"`
	AmountCents int64       `firestore:"amountCents" json:"amountCents"`
	Method      string      `firestore:"method" json:"method"`
	Status      OrderStatus `firestore:"status" json:"status"`
	ExternalID  string      `firestore:"externalId" json:"externalId,omitempty"`
	CreatedAt   time.Time   `firestore:"createdAt" json:"createdAt"`
	PaidAt      time.Time   `firestore:"paidAt" json:"paidAt"`
}

// Mutation changes a user inside a ledger transaction. Returning a non-nil
// Transaction appends it to the user's history; returning an error aborts
// without writing anything.
type Mutation func(u *User) (*Transaction, error)

type Store interface {
	GetUser(ctx context.Context, uid string) (*User, error)
	// EnsureUser creates the user document on first sign-in. It reports
	// whether the document was created.
	EnsureUser(ctx context.Context, uid, email, displayName string) (*User, bool, error)
	// ApplyToUser runs fn against the current user state atomically. A
	// non-empty txID is used as the transaction id and makes the call
	// idempotent: a second call with the same id fails with ErrDuplicate.
	ApplyToUser(ctx context.Context, uid, txID string, fn Mutation) (*User, *Transaction, error)
	ListTransactions(ctx context.Context, uid string, limit int) ([]Transaction, error)

	SaveReading(ctx context.Context, uid string, r *Reading) error
	ListReadings(ctx context.Context, uid string, limit int) ([]Reading, error)
	GetReading(ctx context.Context, uid, id string) (*Reading, error)

	SaveJournalEntry(ctx context.Context, uid string, e *JournalEntry) error
	ListJournalEntries(ctx context.Context, uid string, limit int) ([]JournalEntry, error)
	GetJournalEntry(ctx context.Context, uid, id string) (*JournalEntry, error)
	DeleteJournalEntry(ctx context.Context, uid, id string) error

	SaveRitual(ctx context.Context, uid string, r *Ritual) error
	ListRituals(ctx context.Context, uid string, limit int) ([]Ritual, error)

	SaveOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	MarkOrderPaid(ctx context.Context, id, externalID string, paidAt time.Time) error
}
