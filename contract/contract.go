//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chatline/domain"
	"chatline/query"
	"context"
	"reflect"
)

type serverTimestamp struct{}

// ServerTimestamp asks the store to stamp the field with its commit time.
var ServerTimestamp = serverTimestamp{}

// Record is a stored document: a store-assigned id, the insertion sequence
// used to break ordering ties, and an opaque key-value payload.
type Record struct {
	ID     string
	Seq    uint64
	Fields map[string]any
}

// Snapshot is the full result set of a query at a given store change version.
type Snapshot struct {
	Version uint64
	Records []Record
}

// SnapshotSink receives live snapshots. Consume is called from the store's
// notification path and must not block.
type SnapshotSink interface {
	Consume(ctx context.Context, s Snapshot) error
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// IStore is the document store contract. It is the sole owner of durable state.
type IStore interface {
	Get(ctx context.Context, collection, id string) (Record, bool, error)
	Query(ctx context.Context, q query.Query) ([]Record, error)
	Subscribe(ctx context.Context, q query.Query, sink SnapshotSink) (Subscription, error)
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	UpsertMerge(ctx context.Context, collection, id string, fields map[string]any) error
}

// IAuthProvider exposes the identity attached to a request context.
// Authenticate attaches the identity carried by a bearer token.
type IAuthProvider interface {
	Authenticate(ctx context.Context, token string) (context.Context, error)
	CurrentUser(ctx context.Context) (string, bool)
	SignOut(ctx context.Context) error
}

type ISearchIndex interface {
	Index(ctx context.Context, message domain.Message) error
	Search(ctx context.Context, term string, conversationIDs []string, limit int) ([]domain.SearchHit, error)
}

// LiveQuery is a registered subscription: what to evaluate and where to deliver it.
type LiveQuery struct {
	ID    string
	Query query.Query
	Sink  SnapshotSink
}

type IRegistry interface {
	GetForCollection(collection string) []LiveQuery
	Subscribe(live LiveQuery)
	Unsubscribe(id string)
	Has(id string) bool
	Count() int
}

// Worker is a long-running task owned by a supervisor.
// Returning nil means done for good; an error or a panic gets it restarted.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerName is the worker's type name, used in supervision logs.
func WorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
