package coinmarketcap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/config"
)

const rif = "0x2acc95758f8b5f583470ba265eb685a8f45fc9d5"

func mockCMC(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CMC_PRO_API_KEY") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":{"error_code":1002,"error_message":"API key missing."}}`))

			return
		}

		assert.Equal(t, "/v1/cryptocurrency/quotes/latest", r.URL.Path)
		assert.Equal(t, "3626,3701", r.URL.Query().Get("id"))

		cur := r.URL.Query().Get("convert")
		_, _ = w.Write([]byte(`{"status":{"error_code":0},"data":{
			"3626":{"id":3626,"quote":{"` + cur + `":{"price":29000.5,"last_updated":"2023-08-01T10:00:00.000Z"}}},
			"3701":{"id":3701,"quote":{"` + cur + `":{"price":0.0612,"last_updated":"2023-08-01T10:00:00.000Z"}}}}}`))
	}))
}

func conf(url, key string) config.PriceConfig {
	return config.PriceConfig{
		URL:     url,
		Version: "v1",
		Key:     key,
		IDs:     map[string]string{types.ZeroAddress: "3626", "0x2ACC95758F8B5F583470BA265EB685A8F45FC9D5": "3701"},
	}
}

func TestFetch(t *testing.T) {
	srv := mockCMC(t)
	defer srv.Close()

	c, err := New(conf(srv.URL, "secret"))
	require.NoError(t, err)

	p, err := c.Fetch(context.Background(), "eur")
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, "29000.5", p[types.ZeroAddress].Price.String())
	assert.Equal(t, "0.0612", p[rif].Price.String())
	assert.Equal(t, int64(1690884000), p[rif].LastUpdated.Unix())
}

func TestFetchUnauthorized(t *testing.T) {
	srv := mockCMC(t)
	defer srv.Close()

	c, err := New(conf(srv.URL, "bad"))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "USD")
	assert.True(t, errors.Is(err, ErrResponse))
}

func TestNewNoIDs(t *testing.T) {
	_, err := New(config.PriceConfig{})
	assert.Equal(t, ErrNoIDs, err)
}
