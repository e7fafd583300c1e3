package query_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finquery/finquery/internal/query"
)

func TestLLMGeneratorRoundTrip(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "```sql\nSELECT * FROM account\n```"}},
			},
		})
	}))
	defer server.Close()

	gen := query.NewLLMGenerator(server.URL, "sql-model", "test-key")
	sql, err := gen.Generate(context.Background(), "show accounts", []string{"account", "district"})
	require.NoError(t, err)

	// Fences are stripped before the SQL reaches validation.
	assert.Equal(t, "SELECT * FROM account", sql)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "sql-model", gotBody["model"])

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "Reference ONLY these tables: account, district")
	user := messages[1].(map[string]any)
	assert.Equal(t, "show accounts", user["content"])
}

func TestLLMGeneratorUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gen := query.NewLLMGenerator(server.URL, "sql-model", "")
	_, err := gen.Generate(context.Background(), "anything", []string{"account"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestLLMGeneratorEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	gen := query.NewLLMGenerator(server.URL, "sql-model", "")
	_, err := gen.Generate(context.Background(), "anything", []string{"account"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty generation response")
}
