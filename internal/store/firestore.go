package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	transactionsCollection = "transactions"
	readingsCollection     = "readings"
	journalCollection      = "journal"
	ritualsCollection      = "rituals"
)

// FirestoreStore lays data out as users/{uid} with the per-user history in
// subcollections, and orders as a top-level collection.
type FirestoreStore struct {
	client          *firestore.Client
	userCollection  string
	orderCollection string
	now             func() time.Time
}

func NewFirestoreStore(client *firestore.Client, userCollection, orderCollection string) *FirestoreStore {
	return &FirestoreStore{
		client:          client,
		userCollection:  userCollection,
		orderCollection: orderCollection,
		now:             time.Now,
	}
}

func (s *FirestoreStore) userDoc(uid string) *firestore.DocumentRef {
	return s.client.Collection(s.userCollection).Doc(uid)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) GetUser(ctx context.Context, uid string) (*User, error) {
	snap, err := s.userDoc(uid).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", uid, err)
	}
	var u User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", uid, err)
	}
	u.UID = uid
	return &u, nil
}

func (s *FirestoreStore) EnsureUser(ctx context.Context, uid, email, displayName string) (*User, bool, error) {
	now := s.now()
	u := User{UID: uid, Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}

	_, err := s.userDoc(uid).Create(ctx, u)
	if err == nil {
		return &u, true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return nil, false, fmt.Errorf("create user %s: %w", uid, err)
	}

	existing, err := s.GetUser(ctx, uid)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *FirestoreStore) ApplyToUser(ctx context.Context, uid, txID string, fn Mutation) (*User, *Transaction, error) {
	userRef := s.userDoc(uid)
	var (
		result User
		entry  *Transaction
	)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		entry = nil

		var txRef *firestore.DocumentRef
		if txID != "" {
			txRef = userRef.Collection(transactionsCollection).Doc(txID)
			snap, err := tx.Get(txRef)
			switch {
			case err == nil && snap.Exists():
				return ErrDuplicate
			case err != nil && !isNotFound(err):
				return err
			}
		}

		snap, err := tx.Get(userRef)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		var u User
		if err := snap.DataTo(&u); err != nil {
			return err
		}
		u.UID = uid

		t, err := fn(&u)
		if err != nil {
			return err
		}

		now := s.now()
		u.UpdatedAt = now
		if err := tx.Set(userRef, u); err != nil {
			return err
		}

		if t != nil {
			if txRef == nil {
				txRef = userRef.Collection(transactionsCollection).Doc(uuid.NewString())
			}
			t.ID = txRef.ID
			t.BalanceAfter = u.Points
			t.CreatedAt = now
			if err := tx.Create(txRef, t); err != nil {
				return err
			}
		}

		result = u
		entry = t
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("ledger transaction for %s: %w", uid, err)
	}
	return &result, entry, nil
}

func (s *FirestoreStore) ListTransactions(ctx context.Context, uid string, limit int) ([]Transaction, error) {
	q := s.userDoc(uid).Collection(transactionsCollection).OrderBy("createdAt", firestore.Desc)
	return collect(ctx, limitQuery(q, limit), func(snap *firestore.DocumentSnapshot) (Transaction, error) {
		var t Transaction
		err := snap.DataTo(&t)
		t.ID = snap.Ref.ID
		return t, err
	})
}

func (s *FirestoreStore) SaveReading(ctx context.Context, uid string, r *Reading) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	_, err := s.userDoc(uid).Collection(readingsCollection).Doc(r.ID).Set(ctx, r)
	if err != nil {
		return fmt.Errorf("save reading: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListReadings(ctx context.Context, uid string, limit int) ([]Reading, error) {
	q := s.userDoc(uid).Collection(readingsCollection).OrderBy("createdAt", firestore.Desc)
	return collect(ctx, limitQuery(q, limit), func(snap *firestore.DocumentSnapshot) (Reading, error) {
		var r Reading
		err := snap.DataTo(&r)
		r.ID = snap.Ref.ID
		return r, err
	})
}

func (s *FirestoreStore) GetReading(ctx context.Context, uid, id string) (*Reading, error) {
	var r Reading
	if err := s.getInto(ctx, s.userDoc(uid).Collection(readingsCollection).Doc(id), &r); err != nil {
		return nil, err
	}
	r.ID = id
	return &r, nil
}

func (s *FirestoreStore) SaveJournalEntry(ctx context.Context, uid string, e *JournalEntry) error {
	now := s.now()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err := s.userDoc(uid).Collection(journalCollection).Doc(e.ID).Set(ctx, e)
	if err != nil {
		return fmt.Errorf("save journal entry: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListJournalEntries(ctx context.Context, uid string, limit int) ([]JournalEntry, error) {
	q := s.userDoc(uid).Collection(journalCollection).OrderBy("createdAt", firestore.Desc)
	return collect(ctx, limitQuery(q, limit), func(snap *firestore.DocumentSnapshot) (JournalEntry, error) {
		var e JournalEntry
		err := snap.DataTo(&e)
		e.ID = snap.Ref.ID
		return e, err
	})
}

func (s *FirestoreStore) GetJournalEntry(ctx context.Context, uid, id string) (*JournalEntry, error) {
	var e JournalEntry
	if err := s.getInto(ctx, s.userDoc(uid).Collection(journalCollection).Doc(id), &e); err != nil {
		return nil, err
	}
	e.ID = id
	return &e, nil
}

func (s *FirestoreStore) DeleteJournalEntry(ctx context.Context, uid, id string) error {
	ref := s.userDoc(uid).Collection(journalCollection).Doc(id)
	_, err := ref.Delete(ctx, firestore.Exists)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}

func (s *FirestoreStore) SaveRitual(ctx context.Context, uid string, r *Ritual) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = s.now()
	}
	_, err := s.userDoc(uid).Collection(ritualsCollection).Doc(r.ID).Set(ctx, r)
	if err != nil {
		return fmt.Errorf("save ritual: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListRituals(ctx context.Context, uid string, limit int) ([]Ritual, error) {
	q := s.userDoc(uid).Collection(ritualsCollection).OrderBy("completedAt", firestore.Desc)
	return collect(ctx, limitQuery(q, limit), func(snap *firestore.DocumentSnapshot) (Ritual, error) {
		var r Ritual
		err := snap.DataTo(&r)
		r.ID = snap.Ref.ID
		return r, err
	})
}

func (s *FirestoreStore) SaveOrder(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	_, err := s.client.Collection(s.orderCollection).Doc(o.ID).Set(ctx, o)
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	if err := s.getInto(ctx, s.client.Collection(s.orderCollection).Doc(id), &o); err != nil {
		return nil, err
	}
	o.ID = id
	return &o, nil
}

func (s *FirestoreStore) MarkOrderPaid(ctx context.Context, id, externalID string, paidAt time.Time) error {
	_, err := s.client.Collection(s.orderCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: OrderPaid},
		{Path: "externalId", Value: externalID},
		{Path: "paidAt", Value: paidAt},
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("mark order %s paid: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) getInto(ctx context.Context, ref *firestore.DocumentRef, dst interface{}) error {
	snap, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", ref.Path, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("decode %s: %w", ref.Path, err)
	}
	return nil
}

func limitQuery(q firestore.Query, limit int) firestore.Query {
	if limit > 0 {
		return q.Limit(limit)
	}
	return q
}

func collect[T any](ctx context.Context, q firestore.Query, decode func(*firestore.DocumentSnapshot) (T, error)) ([]T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		item, err := decode(snap)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", snap.Ref.Path, err)
		}
		out = append(out, item)
	}
}
