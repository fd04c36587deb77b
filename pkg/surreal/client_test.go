package surreal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Valid simple", "posts", false},
		{"Valid with underscore", "publish_id", false},
		{"Valid with numbers", "field1", false},
		{"Invalid space", "run id", true},
		{"Invalid dash", "run-id", true},
		{"Invalid SQL injection", "posts; DROP TABLE posts", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIdentifier(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	got, err := buildWhereClause(nil)
	require.NoError(t, err)
	assert.Equal(t, "true", got)

	got, err = buildWhereClause(map[string]interface{}{"status": "ok", "account": "a"})
	require.NoError(t, err)
	assert.Equal(t, "account = $account AND status = $status", got)

	_, err = buildWhereClause(map[string]interface{}{"id; --": 1})
	assert.Error(t, err)
}

func TestSelectQuery(t *testing.T) {
	q, vars, err := SelectQuery([]string{"hook", "timestamp"}, "posts",
		map[string]interface{}{"account": "glow"}, "timestamp desc", 20)
	require.NoError(t, err)
	assert.Equal(t, "SELECT hook, timestamp FROM posts WHERE account = $account ORDER BY timestamp DESC LIMIT 20;", q)
	assert.Equal(t, map[string]interface{}{"account": "glow"}, vars)

	q, _, err = SelectQuery([]string{"hook"}, "posts", nil, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT hook FROM posts WHERE true;", q)

	_, _, err = SelectQuery([]string{"hook"}, "posts", nil, "timestamp; DROP", 1)
	assert.Error(t, err)
	_, _, err = SelectQuery([]string{"*"}, "posts", nil, "", 1)
	assert.Error(t, err)
	_, _, err = SelectQuery([]string{"hook"}, "po sts", nil, "", 1)
	assert.Error(t, err)
}

func TestSettingsEndpoint(t *testing.T) {
	assert.Equal(t, "wss://db.example.com/rpc", Settings{Host: "db.example.com"}.Endpoint())
	assert.Equal(t, "ws://localhost:8000/rpc", Settings{Host: "ws://localhost:8000/rpc"}.Endpoint())
	assert.Equal(t, "", Settings{}.Endpoint())
}

type result struct{ Result interface{} }

func TestUnwrap(t *testing.T) {
	rows := []interface{}{map[string]interface{}{"hook": "x"}}
	assert.Equal(t, rows, unwrap(&[]result{{Result: "first"}, {Result: rows}}))
	assert.Equal(t, "one", unwrap(result{Result: "one"}))
	assert.Equal(t, 5, unwrap(5))
	assert.Nil(t, unwrap((*[]result)(nil)))
}
