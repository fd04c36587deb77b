// Package surreal is a thin, context-aware wrapper over the SurrealDB driver.
package surreal

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Settings locate and authenticate a SurrealDB instance.
type Settings struct {
	Host      string
	User      string
	Pass      string
	Namespace string
	Database  string
}

// Endpoint adds the websocket scheme and /rpc path to a bare host.
func (s Settings) Endpoint() string {
	host := s.Host
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "wss://" + strings.TrimSuffix(host, "/") + "/rpc"
	}
	return host
}

type Client struct {
	db *surrealdb.DB
}

// identifierRegex ensures that table names and fields only contain alphanumeric characters and underscores
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateIdentifier(s string) error {
	if !identifierRegex.MatchString(s) {
		return fmt.Errorf("invalid identifier: %s", s)
	}
	return nil
}

func NewClient(ctx context.Context, s Settings) (*Client, error) {
	db, err := surrealdb.New(s.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to create surrealdb client: %w", err)
	}

	if _, err = db.SignIn(ctx, map[string]interface{}{
		"user": s.User,
		"pass": s.Pass,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to signin to surrealdb: %w", err)
	}

	if err = db.Use(ctx, s.Namespace, s.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to use surrealdb namespace/database: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() {
	c.db.Close(context.Background())
}

// Query runs sql and returns the result of the last statement.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error) {
	result, err := surrealdb.Query[interface{}](ctx, c.db, sql, vars)
	if err != nil {
		return nil, err
	}
	return unwrap(result), nil
}

// unwrap digs the Result field out of the driver's response:
// *[]QueryResult -> last element -> Result.
func unwrap(result interface{}) interface{} {
	rv := reflect.ValueOf(result)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Struct {
		resField := rv.FieldByName("Result")
		if resField.IsValid() {
			return resField.Interface()
		}
	} else if rv.Kind() == reflect.Slice {
		if rv.Len() > 0 {
			lastElem := rv.Index(rv.Len() - 1)
			if lastElem.Kind() == reflect.Struct {
				resField := lastElem.FieldByName("Result")
				if resField.IsValid() {
					return resField.Interface()
				}
			}
		}
	}

	return result
}

func (c *Client) Create(ctx context.Context, table string, data interface{}) (interface{}, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	result, err := surrealdb.Create[interface{}](ctx, c.db, table, data)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SelectQuery builds a parameterised SELECT over table with equality
// filters. Field and table names are validated; values travel as vars.
func SelectQuery(fields []string, table string, filter map[string]interface{}, orderBy string, limit int) (string, map[string]interface{}, error) {
	if err := validateIdentifier(table); err != nil {
		return "", nil, err
	}
	for _, f := range fields {
		if err := validateIdentifier(f); err != nil {
			return "", nil, err
		}
	}

	whereClause, err := buildWhereClause(filter)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(fields, ", "), table, whereClause)
	if orderBy != "" {
		col, dir, _ := strings.Cut(orderBy, " ")
		if err := validateIdentifier(col); err != nil {
			return "", nil, err
		}
		dir = strings.ToUpper(strings.TrimSpace(dir))
		if dir != "" && dir != "ASC" && dir != "DESC" {
			return "", nil, fmt.Errorf("invalid order direction: %s", dir)
		}
		query += " ORDER BY " + strings.TrimSpace(col+" "+dir)
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	vars := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		vars[k] = v
	}
	return query + ";", vars, nil
}

func buildWhereClause(filter map[string]interface{}) (string, error) {
	if len(filter) == 0 {
		return "true", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if err := validateIdentifier(k); err != nil {
			return "", err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, len(keys))
	for i, k := range keys {
		clauses[i] = fmt.Sprintf("%s = $%s", k, k)
	}
	return strings.Join(clauses, " AND "), nil
}
