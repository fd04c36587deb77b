// Package history keeps a ledger of post attempts.
package history

import (
	"context"
	"fmt"
	"time"

	"carouselbot/pkg/surreal"
)

const (
	StatusPosted = "posted"
	StatusFailed = "failed"
)

// Record is one post attempt, successful or not.
type Record struct {
	RunID     string `json:"run_id"`
	Account   string `json:"account"`
	Hook      string `json:"hook"`
	CTA       string `json:"cta"`
	Slides    int    `json:"slides"`
	Status    string `json:"status"`
	PublishID string `json:"publish_id"`
	URL       string `json:"url"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

type Store interface {
	Record(ctx context.Context, r Record) error
	// RecentHooks lists the hooks of the account's last n attempts, newest
	// first.
	RecentHooks(ctx context.Context, account string, n int) ([]string, error)
}

type nop struct{}

func (nop) Record(context.Context, Record) error { return nil }

func (nop) RecentHooks(context.Context, string, int) ([]string, error) { return nil, nil }

// Nop keeps nothing.
var Nop Store = nop{}

// querier is the subset of *surreal.Client the store uses.
type querier interface {
	Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error)
	Create(ctx context.Context, table string, data interface{}) (interface{}, error)
}

const table = "posts"

type SurrealStore struct {
	client querier
	now    func() time.Time
}

func NewSurrealStore(ctx context.Context, client *surreal.Client) (*SurrealStore, error) {
	s := newSurrealStore(client)
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

func newSurrealStore(client querier) *SurrealStore {
	return &SurrealStore{client: client, now: time.Now}
}

func (s *SurrealStore) Init(ctx context.Context) error {
	query := `
		DEFINE TABLE IF NOT EXISTS posts SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS run_id ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS account ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS hook ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS cta ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS slides ON posts TYPE int;
		DEFINE FIELD IF NOT EXISTS status ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS publish_id ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS url ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS error ON posts TYPE string;
		DEFINE FIELD IF NOT EXISTS timestamp ON posts TYPE int;
		DEFINE INDEX IF NOT EXISTS posts_account_time ON posts FIELDS account, timestamp;
	`
	_, err := s.client.Query(ctx, query, map[string]interface{}{})
	return err
}

func (s *SurrealStore) Record(ctx context.Context, r Record) error {
	if r.Timestamp == 0 {
		r.Timestamp = s.now().UnixNano()
	}
	_, err := s.client.Create(ctx, table, r)
	return err
}

func (s *SurrealStore) RecentHooks(ctx context.Context, account string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	query, vars, err := surreal.SelectQuery([]string{"hook", "timestamp"}, table,
		map[string]interface{}{"account": account}, "timestamp DESC", n)
	if err != nil {
		return nil, err
	}

	result, err := s.client.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows, ok := result.([]interface{})
	if !ok {
		return nil, nil
	}

	hooks := make([]string, 0, len(rows))
	for _, row := range rows {
		rowMap, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		if hook, ok := rowMap["hook"].(string); ok && hook != "" {
			hooks = append(hooks, hook)
		}
	}
	return hooks, nil
}
