package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

const (
	sessionsCollection = "sessions"
	listingsCollection = "listings"
)

// Firestore is a Repository backed by Google Cloud Firestore. Documents
// carry the JSON encoding of the record so the store stays agnostic of
// the session schema.
type Firestore struct {
	client *firestore.Client
	mu     sync.RWMutex
	closed bool
}

// FirestoreConfig holds Firestore connection configuration.
type FirestoreConfig struct {
	// ProjectID is the GCP project (required).
	ProjectID string
	// CredentialsFile is an optional service-account key path; without
	// it, Application Default Credentials are used.
	CredentialsFile string
}

// NewFirestore creates a Firestore repository.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

// document is the stored shape of every record.
type document struct {
	Data      string    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (f *Firestore) put(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	_, err = f.client.Collection(collection).Doc(id).Set(ctx, document{
		Data:      string(data),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *Firestore) get(ctx context.Context, collection, id string, v any, notFound error) error {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", collection, id, err)
	}

	var doc document
	if err := snap.DataTo(&doc); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal([]byte(doc.Data), v); err != nil {
		return fmt.Errorf("parse %s/%s: %w", collection, id, err)
	}
	return nil
}

// SaveSession implements Repository.
func (f *Firestore) SaveSession(ctx context.Context, s *market.Session) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrStoreClosed
	}
	return f.put(ctx, sessionsCollection, s.ID, s)
}

// GetSession implements Repository.
func (f *Firestore) GetSession(ctx context.Context, id string) (*market.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrStoreClosed
	}
	var s market.Session
	if err := f.get(ctx, sessionsCollection, id, &s, market.ErrSessionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession implements Repository.
func (f *Firestore) DeleteSession(ctx context.Context, id string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrStoreClosed
	}
	if _, err := f.client.Collection(sessionsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// ListSessions implements Repository.
func (f *Firestore) ListSessions(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrStoreClosed
	}

	var ids []string
	iter := f.client.Collection(sessionsCollection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}

// SaveListing implements Repository.
func (f *Firestore) SaveListing(ctx context.Context, l *market.Listing) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrStoreClosed
	}
	return f.put(ctx, listingsCollection, l.ID, l)
}

// GetListing implements Repository.
func (f *Firestore) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrStoreClosed
	}
	var l market.Listing
	if err := f.get(ctx, listingsCollection, id, &l, market.ErrListingNotFound); err != nil {
		return nil, err
	}
	return &l, nil
}

// Close implements Repository.
func (f *Firestore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.client.Close()
}
