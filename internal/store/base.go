package store

import (
	"context"
	"time"
)

type readPathFunc func(ctx context.Context, segs []string) (any, error)
type queryPathFunc func(ctx context.Context, segs []string, q Query) (Snapshot, error)

// reader implements Get, Query and Watch on top of a backend's path read.
// Backends with server-side ordering supply query.
type reader struct {
	read     readPathFunc
	query    queryPathFunc
	watchers *watchers
}

func newReader(backend string, poll time.Duration, read readPathFunc, query queryPathFunc) reader {
	r := reader{read: read, query: query, watchers: newWatchers(backend, poll)}
	if r.query == nil {
		r.query = func(ctx context.Context, segs []string, q Query) (Snapshot, error) {
			v, err := read(ctx, segs)
			if err != nil {
				return Snapshot{}, err
			}
			return q.apply(lastSegment(segs), v), nil
		}
	}
	return r
}

func (r reader) Get(ctx context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	v, err := r.read(ctx, segs)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Key: lastSegment(segs), Value: v}, nil
}

func (r reader) Query(ctx context.Context, path string, q Query) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	return r.query(ctx, segs, q)
}

func (r reader) Watch(ctx context.Context, path string, q *Query) (*Subscription, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	read := func(ctx context.Context) (Snapshot, error) {
		if q != nil && !q.isZero() {
			return r.query(ctx, segs, *q)
		}
		v, err := r.read(ctx, segs)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Key: lastSegment(segs), Value: v}, nil
	}
	return r.watchers.watch(ctx, segs, read)
}
