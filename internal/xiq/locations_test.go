package xiq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treeJSON = `[
  {"id": 1, "name": "Global", "unique_name": "Global", "children": [
    {"id": 2, "name": "Berlin", "uniqueName": "Global/Berlin", "children": [
      {"id": 3, "name": "HQ", "unique_name": "Global/Berlin/HQ"}
    ]},
    {"id": 4, "name": "HQ", "unique_name": "Global/Hamburg/HQ"}
  ]}
]`

func TestFetchLocationsTreeVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, locationsTreePath, r.URL.Path)
		assertAuth(t, r)
		_, _ = w.Write([]byte(treeJSON))
	}))
	defer server.Close()

	c := newTestClient(t, server, &recordingSleeper{}, 1)
	raw, err := c.FetchLocationsTree(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, treeJSON, string(raw))
}

func TestFindLocation(t *testing.T) {
	nodes, err := ParseLocations([]byte(treeJSON))
	require.NoError(t, err)

	loc, ok := FindLocation(nodes, "Global/Berlin")
	require.True(t, ok)
	assert.Equal(t, int64(2), loc.ID)

	loc, ok = FindLocation(nodes, "Global/Hamburg/HQ")
	require.True(t, ok)
	assert.Equal(t, int64(4), loc.ID)

	loc, ok = FindLocation(nodes, "HQ")
	require.True(t, ok)
	assert.Equal(t, int64(3), loc.ID, "depth-first, first match")

	_, ok = FindLocation(nodes, "Munich")
	assert.False(t, ok)
}

func TestParseLocationsSingleNode(t *testing.T) {
	nodes, err := ParseLocations([]byte(`{"id": 9, "name": "Root", "uniqueName": "Root"}`))
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Root", nodes[0].UniqueName)

	nodes, err = ParseLocations(nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
