package store

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/db"
)

// FirebaseStore talks to the Firebase Realtime Database through the Admin
// SDK. The SDK has no listeners, so watches poll; writes made through this
// store are also pushed to local watchers immediately.
type FirebaseStore struct {
	reader

	client *db.Client
}

func NewFirebaseStore(client *db.Client, poll time.Duration) *FirebaseStore {
	s := &FirebaseStore{client: client}
	s.reader = newReader("firebase", poll, s.readPath, s.queryPath)
	return s
}

func (s *FirebaseStore) ref(segs []string) *db.Ref {
	return s.client.NewRef("/" + joinPath(segs))
}

func (s *FirebaseStore) readPath(ctx context.Context, segs []string) (any, error) {
	var v any
	if err := s.ref(segs).Get(ctx, &v); err != nil {
		return nil, fmt.Errorf("store: firebase get %q: %w", joinPath(segs), err)
	}
	return prune(v), nil
}

func (s *FirebaseStore) queryPath(ctx context.Context, segs []string, q Query) (Snapshot, error) {
	ref := s.ref(segs)
	var query *db.Query
	if q.OrderByChild != "" {
		query = ref.OrderByChild(q.OrderByChild)
	} else {
		query = ref.OrderByKey()
	}
	if q.LimitToFirst > 0 {
		query = query.LimitToFirst(q.LimitToFirst)
	}
	if q.LimitToLast > 0 {
		query = query.LimitToLast(q.LimitToLast)
	}

	nodes, err := query.GetOrdered(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: firebase query %q: %w", joinPath(segs), err)
	}

	order := make([]string, 0, len(nodes))
	children := make(map[string]any, len(nodes))
	for _, n := range nodes {
		var v any
		if err := n.Unmarshal(&v); err != nil {
			return Snapshot{}, fmt.Errorf("store: firebase decode %q: %w", n.Key(), err)
		}
		order = append(order, n.Key())
		children[n.Key()] = prune(v)
	}
	snap := Snapshot{Key: lastSegment(segs), order: order}
	if len(children) > 0 {
		snap.Value = children
	}
	return snap, nil
}

// Update sends one multi-location PATCH, which Firebase applies atomically.
// Server values travel in their {".sv": ...} form and are resolved remotely.
func (s *FirebaseStore) Update(ctx context.Context, updates map[string]any) error {
	writes, err := prepare(updates)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	if len(writes) == 1 && len(writes[0].segs) == 0 {
		if err := s.client.NewRef("/").Set(ctx, writes[0].value); err != nil {
			return fmt.Errorf("store: firebase set root: %w", err)
		}
	} else {
		payload := make(map[string]interface{}, len(writes))
		for _, w := range writes {
			payload[w.path()] = w.value
		}
		if err := s.client.NewRef("/").Update(ctx, payload); err != nil {
			return fmt.Errorf("store: firebase update: %w", err)
		}
	}

	s.watchers.notify(writtenPaths(writes))
	return nil
}

func (s *FirebaseStore) Close() error {
	s.watchers.closeAll()
	return nil
}
