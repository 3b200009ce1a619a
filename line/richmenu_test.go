package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeLineServer(t *testing.T, menus []RichMenu, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/bot/richmenu/list", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		if calls != nil {
			*calls++
		}
		json.NewEncoder(w).Encode(map[string]any{"richmenus": menus})
	}))
}

func TestInsideRichMenuIDPicksNewestInsideMenu(t *testing.T) {
	server := newFakeLineServer(t, []RichMenu{
		{RichMenuID: "rm-1", Name: "outside-2024"},
		{RichMenuID: "rm-2", Name: "inside-2024-01"},
		{RichMenuID: "rm-3", Name: "inside-2024-06"},
	}, nil)
	defer server.Close()

	cache := NewRichMenuCache(NewClient(server.URL, "test-token"))
	id, err := cache.InsideRichMenuID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rm-3", id)
}

func TestInsideRichMenuIDNoneProvisioned(t *testing.T) {
	server := newFakeLineServer(t, []RichMenu{
		{RichMenuID: "rm-1", Name: "outside-2024"},
	}, nil)
	defer server.Close()

	cache := NewRichMenuCache(NewClient(server.URL, "test-token"))
	_, err := cache.InsideRichMenuID(context.Background())
	assert.ErrorIs(t, err, ErrNoInsideRichMenu)
}

func TestInsideRichMenuIDCachesList(t *testing.T) {
	var calls int
	server := newFakeLineServer(t, []RichMenu{
		{RichMenuID: "rm-1", Name: "inside-v1"},
	}, &calls)
	defer server.Close()

	cache := NewRichMenuCache(NewClient(server.URL, "test-token"))
	for i := 0; i < 3; i++ {
		id, err := cache.InsideRichMenuID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "rm-1", id)
	}
	assert.Equal(t, 1, calls)
}
