package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// leafDoc is one scalar leaf of the tree, keyed by its path.
type leafDoc struct {
	Path  string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoStore keeps one document per leaf. Updates run in a multi-document
// transaction, so the server must be a replica set.
type MongoStore struct {
	reader

	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string, poll time.Duration) *MongoStore {
	s := &MongoStore{
		client:     client,
		collection: client.Database(database).Collection("store_nodes"),
	}
	s.reader = newReader("mongo", poll, func(ctx context.Context, segs []string) (any, error) {
		return s.readCtx(ctx, segs)
	}, nil)
	return s
}

func subtreeFilter(segs []string) bson.M {
	if len(segs) == 0 {
		return bson.M{}
	}
	p := joinPath(segs)
	return bson.M{"$or": bson.A{
		bson.M{"_id": p},
		bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(p+"/")}},
	}}
}

func (s *MongoStore) readCtx(ctx context.Context, segs []string) (any, error) {
	cursor, err := s.collection.Find(ctx, subtreeFilter(segs))
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", joinPath(segs), err)
	}
	defer cursor.Close(ctx)

	var docs []leafDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: read %q: %w", joinPath(segs), err)
	}

	var root any
	for _, d := range docs {
		rel, err := splitPath(d.Path)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(d.Value), &v); err != nil {
			return nil, fmt.Errorf("store: decode %q: %w", d.Path, err)
		}
		root = setAt(root, rel[len(segs):], v)
	}
	return root, nil
}

func (s *MongoStore) Update(ctx context.Context, updates map[string]any) error {
	writes, err := prepare(updates)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("store: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		values, err := resolveAll(writes, func(segs []string) (any, error) {
			return s.readCtx(sc, segs)
		})
		if err != nil {
			return nil, err
		}
		for i, w := range writes {
			if _, err := s.collection.DeleteMany(sc, subtreeFilter(w.segs)); err != nil {
				return nil, fmt.Errorf("store: clear %q: %w", w.path(), err)
			}
			if anc := ancestors(w.segs); len(anc) > 0 {
				if _, err := s.collection.DeleteMany(sc, bson.M{"_id": bson.M{"$in": anc}}); err != nil {
					return nil, fmt.Errorf("store: clear ancestors of %q: %w", w.path(), err)
				}
			}
			rows, err := leafRows(w.segs, values[i])
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				continue
			}
			docs := make([]interface{}, len(rows))
			for j, r := range rows {
				docs[j] = leafDoc{Path: r.Path, Value: r.Value}
			}
			if _, err := s.collection.InsertMany(sc, docs); err != nil {
				return nil, fmt.Errorf("store: write %q: %w", w.path(), err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	s.watchers.notify(writtenPaths(writes))
	return nil
}

func (s *MongoStore) Close() error {
	s.watchers.closeAll()
	return nil
}
