package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func credit(amount int64) Mutation {
	return func(u *User) (*Transaction, error) {
		u.Points += amount
		return &Transaction{Type: TxAdmin, Amount: amount}, nil
	}
}

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	uid := "user-" + uuid.NewString()

	t.Run("ensure user is idempotent", func(t *testing.T) {
		u, created, err := s.EnsureUser(ctx, uid, "luz@example.com", "Luz")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(0), u.Points)

		_, created, err = s.EnsureUser(ctx, uid, "other@example.com", "Other")
		require.NoError(t, err)
		assert.False(t, created)

		got, err := s.GetUser(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, "luz@example.com", got.Email)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := s.GetUser(ctx, "missing-"+uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)

		_, _, err = s.ApplyToUser(ctx, "missing-"+uuid.NewString(), "", credit(1))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("apply records balance after", func(t *testing.T) {
		u, tx, err := s.ApplyToUser(ctx, uid, "", credit(40))
		require.NoError(t, err)
		assert.Equal(t, int64(40), u.Points)
		require.NotNil(t, tx)
		assert.NotEmpty(t, tx.ID)
		assert.Equal(t, int64(40), tx.BalanceAfter)
	})

	t.Run("idempotency key rejects replays", func(t *testing.T) {
		_, _, err := s.ApplyToUser(ctx, uid, "order-1", credit(10))
		require.NoError(t, err)

		_, _, err = s.ApplyToUser(ctx, uid, "order-1", credit(10))
		assert.ErrorIs(t, err, ErrDuplicate)

		u, err := s.GetUser(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(50), u.Points)
	})

	t.Run("mutation error writes nothing", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := s.ApplyToUser(ctx, uid, "", func(u *User) (*Transaction, error) {
			u.Points = 9999
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		u, err := s.GetUser(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(50), u.Points)
	})

	t.Run("transactions are listed newest first", func(t *testing.T) {
		txs, err := s.ListTransactions(ctx, uid, 10)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, int64(50), txs[0].BalanceAfter)

		txs, err = s.ListTransactions(ctx, uid, 1)
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("readings", func(t *testing.T) {
		r := &Reading{Tool: "tarot", Input: map[string]string{"question": "amor?"}, Result: map[string]interface{}{"summary": "sim"}, Cost: 15}
		require.NoError(t, s.SaveReading(ctx, uid, r))
		require.NotEmpty(t, r.ID)

		got, err := s.GetReading(ctx, uid, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "tarot", got.Tool)
		assert.Equal(t, "sim", got.Result["summary"])

		list, err := s.ListReadings(ctx, uid, 10)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = s.GetReading(ctx, uid, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("journal", func(t *testing.T) {
		e := &JournalEntry{Title: "Lua cheia", Content: "Senti calma.", Tags: []string{"lua"}}
		require.NoError(t, s.SaveJournalEntry(ctx, uid, e))
		created := e.CreatedAt

		e.Content = "Senti muita calma."
		require.NoError(t, s.SaveJournalEntry(ctx, uid, e))

		got, err := s.GetJournalEntry(ctx, uid, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "Senti muita calma.", got.Content)
		assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond)

		require.NoError(t, s.DeleteJournalEntry(ctx, uid, e.ID))
		assert.ErrorIs(t, s.DeleteJournalEntry(ctx, uid, e.ID), ErrNotFound)

		list, err := s.ListJournalEntries(ctx, uid, 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("rituals", func(t *testing.T) {
		require.NoError(t, s.SaveRitual(ctx, uid, &Ritual{Name: "Banho de ervas"}))
		list, err := s.ListRituals(ctx, uid, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].CompletedAt.IsZero())
	})

	t.Run("orders", func(t *testing.T) {
		o := &Order{UID: uid, PackageID: "basico", Points: 100, AmountCents: 990, Method: "pix", Status: OrderPending}
		require.NoError(t, s.SaveOrder(ctx, o))

		paidAt := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, s.MarkOrderPaid(ctx, o.ID, "charge-1", paidAt))

		got, err := s.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, OrderPaid, got.Status)
		assert.Equal(t, "charge-1", got.ExternalID)
		assert.True(t, got.PaidAt.Equal(paidAt))

		_, err = s.GetOrder(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	runStoreContract(t, s)
}

func TestMemoryStoreConcurrentSpend(t *testing.T) {
	s := NewMemoryStore()
	s.PutUser(User{UID: "u", Points: 100})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.ApplyToUser(context.Background(), "u", "", func(u *User) (*Transaction, error) {
				if u.Points < 10 {
					return nil, errors.New("insufficient")
				}
				u.Points -= 10
				return &Transaction{Type: TxSpend, Amount: -10}, nil
			})
		}()
	}
	wg.Wait()

	u, err := s.GetUser(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Points)

	txs, err := s.ListTransactions(context.Background(), "u", 0)
	require.NoError(t, err)
	assert.Len(t, txs, 10)
}

func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "guia-test")
	require.NoError(t, err)
	defer client.Close()

	runStoreContract(t, NewFirestoreStore(client, "users-"+uuid.NewString(), "orders-"+uuid.NewString()))
}
