package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steam-party-bot/internal/config"
)

func newTestClient(upstream *httptest.Server) *Client {
	return NewClient(&config.SteamConfig{
		APIKey:  "test-key",
		APIBase: upstream.URL,
	})
}

func TestFetchCatalog(t *testing.T) {
	var gotQuery map[string]string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"key":             r.URL.Query().Get("key"),
			"steamid":         r.URL.Query().Get("steamid"),
			"include_appinfo": r.URL.Query().Get("include_appinfo"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"response": {
				"game_count": 2,
				"games": [
					{"appid": 730, "name": "Counter-Strike 2", "img_icon_url": "abc"},
					{"appid": 570, "name": "Dota 2", "img_icon_url": "def"}
				]
			}
		}`))
	}))
	defer upstream.Close()

	catalog, err := newTestClient(upstream).FetchCatalog(context.Background(), "7656119")
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, int64(730), catalog[0].AppID)
	assert.Equal(t, "Counter-Strike 2", catalog[0].Name)
	assert.Equal(t, "abc", catalog[0].IconRef)

	assert.Equal(t, "test-key", gotQuery["key"])
	assert.Equal(t, "7656119", gotQuery["steamid"])
	assert.Equal(t, "true", gotQuery["include_appinfo"])
}

func TestFetchCatalog_EmptyLibrary(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response": {"game_count": 0, "games": []}}`))
	}))
	defer upstream.Close()

	// An empty but present games list is a valid, empty catalog.
	catalog, err := newTestClient(upstream).FetchCatalog(context.Background(), "7656119")
	require.NoError(t, err)
	assert.Empty(t, catalog)
}

func TestFetchCatalog_PrivateProfile(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Private profiles and unknown ids come back with no games field.
		_, _ = w.Write([]byte(`{"response": {}}`))
	}))
	defer upstream.Close()

	_, err := newTestClient(upstream).FetchCatalog(context.Background(), "7656119")
	assert.ErrorIs(t, err, ErrLibraryUnavailable)
}

func TestFetchCatalog_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	_, err := newTestClient(upstream).FetchCatalog(context.Background(), "7656119")
	assert.ErrorIs(t, err, ErrLibraryUnavailable)
}

func TestFetchCatalog_MalformedBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer upstream.Close()

	_, err := newTestClient(upstream).FetchCatalog(context.Background(), "7656119")
	assert.ErrorIs(t, err, ErrLibraryUnavailable)
}
