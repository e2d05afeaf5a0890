package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

// node is one scalar leaf of the tree.
type node struct {
	Path  string `gorm:"primaryKey;size:768"`
	Value string `gorm:"type:text;not null"`
}

func (node) TableName() string {
	return "store_nodes"
}

// SQLOptions tunes SQLStore.
type SQLOptions struct {
	// PollInterval re-reads watched paths to pick up writes from other
	// processes. Zero disables polling.
	PollInterval time.Duration

	// Serializable runs updates at serializable isolation so concurrent
	// increments from several processes cannot be lost. Postgres only.
	Serializable bool
}

// SQLStore keeps one row per leaf. Works with any gorm dialect that has
// substr; postgres in production and sqlite in tests.
type SQLStore struct {
	reader

	db     *gorm.DB
	txOpts []*sql.TxOptions

	// serializes writers inside this process
	mu sync.Mutex
}

func NewSQLStore(db *gorm.DB, opts SQLOptions) (*SQLStore, error) {
	if err := db.AutoMigrate(&node{}); err != nil {
		return nil, fmt.Errorf("store: migrate nodes: %w", err)
	}
	s := &SQLStore{db: db}
	if opts.Serializable {
		s.txOpts = []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	s.reader = newReader("sql", opts.PollInterval, func(ctx context.Context, segs []string) (any, error) {
		return s.readTx(s.db.WithContext(ctx), segs)
	}, nil)
	return s, nil
}

func subtree(tx *gorm.DB, segs []string) *gorm.DB {
	if len(segs) == 0 {
		return tx.Where("1 = 1")
	}
	p := joinPath(segs)
	prefix := p + "/"
	return tx.Where("path = ? OR substr(path, 1, ?) = ?", p, utf8.RuneCountInString(prefix), prefix)
}

func (s *SQLStore) readTx(tx *gorm.DB, segs []string) (any, error) {
	var rows []node
	if err := subtree(tx.Model(&node{}), segs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: read %q: %w", joinPath(segs), err)
	}

	var root any
	for _, r := range rows {
		rel, err := splitPath(r.Path)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(r.Value), &v); err != nil {
			return nil, fmt.Errorf("store: decode %q: %w", r.Path, err)
		}
		root = setAt(root, rel[len(segs):], v)
	}
	return root, nil
}

func (s *SQLStore) Update(ctx context.Context, updates map[string]any) error {
	writes, err := prepare(updates)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values, err := resolveAll(writes, func(segs []string) (any, error) {
			return s.readTx(tx, segs)
		})
		if err != nil {
			return err
		}
		for i, w := range writes {
			if err := subtree(tx, w.segs).Delete(&node{}).Error; err != nil {
				return fmt.Errorf("store: clear %q: %w", w.path(), err)
			}
			if anc := ancestors(w.segs); len(anc) > 0 {
				if err := tx.Where("path IN ?", anc).Delete(&node{}).Error; err != nil {
					return fmt.Errorf("store: clear ancestors of %q: %w", w.path(), err)
				}
			}
			rows, err := leafRows(w.segs, values[i])
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				if err := tx.CreateInBatches(rows, 200).Error; err != nil {
					return fmt.Errorf("store: write %q: %w", w.path(), err)
				}
			}
		}
		return nil
	}, s.txOpts...)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.watchers.notify(writtenPaths(writes))
	return nil
}

func leafRows(segs []string, v any) ([]node, error) {
	leaves := flatten(segs, v)
	rows := make([]node, 0, len(leaves))
	for _, l := range leaves {
		b, err := json.Marshal(l.value)
		if err != nil {
			return nil, fmt.Errorf("store: encode %q: %w", l.path, err)
		}
		rows = append(rows, node{Path: l.path, Value: string(b)})
	}
	return rows, nil
}

func (s *SQLStore) Close() error {
	s.watchers.closeAll()
	return nil
}
