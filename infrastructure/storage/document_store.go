package storage

import (
	"chatline/contract"
	chaterrors "chatline/errors"
	"chatline/query"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const sequenceBandwidth = 100

// DocumentStore is a document database on top of BadgerDB.
// Documents live under "doc:{collection}:{id}" and carry the insertion
// sequence used to break ordering ties between equal sort values.
//
// Every committed write bumps a change version and re-delivers the full
// result set to the live queries watching the written collection. Deliveries
// are serialized, so a subscriber never sees an older state after a newer one.
type DocumentStore struct {
	db       *badger.DB
	log      *slog.Logger
	registry contract.IRegistry
	sequence *badger.Sequence
	clock    func() time.Time

	writeMu  sync.Mutex
	lastTime time.Time

	notifyMu sync.Mutex
	version  atomic.Uint64
}

func NewDocumentStore(db *badger.DB, log *slog.Logger, registry contract.IRegistry, clock func() time.Time) (*DocumentStore, error) {
	sequence, err := db.GetSequence([]byte("seq:documents"), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("document sequence: %w", err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &DocumentStore{db: db, log: log, registry: registry, sequence: sequence, clock: clock}, nil
}

// Close releases the leased sequence range. The badger DB stays owned by the caller.
func (s *DocumentStore) Close() error {
	return s.sequence.Release()
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (contract.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return contract.Record{}, false, err
	}
	var record contract.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = decodeRecord(id, val)
			return err
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return contract.Record{}, false, nil
	case err != nil:
		return contract.Record{}, false, fmt.Errorf("%w: get %s/%s: %v", chaterrors.ErrStoreUnavailable, collection, id, err)
	}
	return record, true, nil
}

// Query runs a prefix scan over the collection, keeps matching documents
// and sorts them with the query's ordering.
func (s *DocumentStore) Query(ctx context.Context, q query.Query) ([]contract.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := Scan(s.db, q)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", chaterrors.ErrStoreUnavailable, q.Collection, err)
	}
	return records, nil
}

// Scan evaluates q directly against a badger DB. It only reads, so it also
// works on a database opened read-only.
func Scan(db *badger.DB, q query.Query) ([]contract.Record, error) {
	var records []contract.Record
	err := db.View(func(txn *badger.Txn) error {
		prefix := collectionPrefix(q.Collection)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				record, err := decodeRecord(id, val)
				if err != nil {
					return err
				}
				if q.Matches(record.Fields) {
					records = append(records, record)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(records, func(a, b contract.Record) int {
		return q.Compare(a.Fields, a.Seq, b.Fields, b.Seq)
	})
	return records, nil
}

// Insert stores a new document under a generated id.
func (s *DocumentStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// UpsertMerge creates the document or merges fields into the existing one, last write wins per field.
func (s *DocumentStore) UpsertMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.write(ctx, collection, id, fields, true)
}

// Subscribe registers a live query. The current result set is delivered
// asynchronously, then again after every change to the collection.
func (s *DocumentStore) Subscribe(ctx context.Context, q query.Query, sink contract.SnapshotSink) (contract.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	live := contract.LiveQuery{ID: uuid.NewString(), Query: q, Sink: sink}
	s.registry.Subscribe(live)
	s.log.Debug("Live query registered", "subscription", live.ID, "collection", q.Collection)

	deliveryCtx := context.WithoutCancel(ctx)
	go func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		if s.registry.Has(live.ID) {
			s.deliver(deliveryCtx, live, s.version.Load())
		}
	}()
	return &subscription{id: live.ID, store: s}, nil
}

// SubscriberCount returns the number of live queries still registered.
func (s *DocumentStore) SubscriberCount() int {
	return s.registry.Count()
}

func (s *DocumentStore) write(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	resolved := resolveServerTimestamps(fields, s.commitTime())
	err := s.db.Update(func(txn *badger.Txn) error {
		key := docKey(collection, id)
		var existing contract.Record
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err = item.Value(func(val []byte) error {
				existing, err = decodeRecord(id, val)
				return err
			}); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			if existing.Seq, err = s.sequence.Next(); err != nil {
				return err
			}
		default:
			return err
		}
		if merge && existing.Fields != nil {
			resolved = lo.Assign(existing.Fields, resolved)
		}
		data, err := encodeRecord(existing.Seq, resolved)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: write %s/%s: %v", chaterrors.ErrStoreUnavailable, collection, id, err)
	}
	s.notify(context.WithoutCancel(ctx), collection)
	return nil
}

// commitTime is strictly increasing across writes, even when the clock is not.
// Callers hold writeMu.
func (s *DocumentStore) commitTime() time.Time {
	now := s.clock().UTC()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = now
	return now
}

func (s *DocumentStore) notify(ctx context.Context, collection string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	version := s.version.Add(1)
	for _, live := range s.registry.GetForCollection(collection) {
		s.deliver(ctx, live, version)
	}
}

// deliver is called with notifyMu held.
func (s *DocumentStore) deliver(ctx context.Context, live contract.LiveQuery, version uint64) {
	records, err := s.Query(ctx, live.Query)
	if err != nil {
		s.log.Error("Live query evaluation failed", "subscription", live.ID, "error", err)
		return
	}
	if err = live.Sink.Consume(ctx, contract.Snapshot{Version: version, Records: records}); err != nil {
		s.log.Debug("Snapshot rejected by sink", "subscription", live.ID, "error", err)
	}
}

type subscription struct {
	id    string
	store *DocumentStore
	once  sync.Once
}

func (sub *subscription) ID() string { return sub.id }

// Unsubscribe waits for an in-flight delivery to finish, so no callback fires once it returns.
func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.store.notifyMu.Lock()
		defer sub.store.notifyMu.Unlock()
		sub.store.registry.Unsubscribe(sub.id)
		sub.store.log.Debug("Live query unregistered", "subscription", sub.id)
	})
}

func docKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("doc:%s:%s", collection, id))
}

func collectionPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("doc:%s:", collection))
}
