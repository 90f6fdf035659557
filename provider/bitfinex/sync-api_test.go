package bitfinex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncAPI_BookSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/book/tBTCUSD/P0", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("len"))

		w.Write([]byte(`[[41669,1,0.0008],[41674,2,-0.3],[41680,0,-1]]`))
	}))
	defer server.Close()

	t.Setenv("BITFINEX_REST_ENDPOINT", server.URL)
	api := NewSyncAPI()

	snap, err := api.BookSnapshot(context.Background(), testSymbol(t), 25)
	assert.NoError(t, err)

	assert.Len(t, snap.Bids, 1)
	assert.Len(t, snap.Asks, 1, "zero-count levels should be skipped")
	assert.Equal(t, "41669", snap.Bids[0].Price.String())
	assert.Equal(t, "0.3", snap.Asks[0].Size.String())
}

func TestSyncAPI_BookSnapshotServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	t.Setenv("BITFINEX_REST_ENDPOINT", server.URL)
	api := NewSyncAPI()

	_, err := api.BookSnapshot(context.Background(), testSymbol(t), 25)
	assert.Error(t, err)
}
