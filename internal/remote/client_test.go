package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAllRecipes(t *testing.T) {
	var req Request = GetAllRecipes{}
	assert.Equal(t, http.MethodGet, req.Method())
	assert.Equal(t, "/recipes.json", req.Path())
	assert.Equal(t, "/v2/all.json", GetAllRecipes{Resource: "/v2/all.json"}.Path())
}

func TestClientRecipesPathOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/all.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"recipes":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RecipesPath: "/v2/all.json"})
	_, err := c.FetchAll(context.Background())
	require.NoError(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
	assert.Equal(t, DefaultTimeout, c.hc.Timeout)

	c = NewClient(Config{BaseURL: "http://example.test/", Timeout: time.Second})
	assert.Equal(t, "http://example.test", c.cfg.BaseURL)
	assert.Equal(t, time.Second, c.hc.Timeout)
}

func TestClientFetchAll(t *testing.T) {
	body := `{"recipes":[{"uuid":"0a8b1c2d-3e4f-4a5b-8c6d-7e8f90a1b2c3","name":"Pie"}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/recipes.json", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	p, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, body, string(p))
}

func TestClientNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.FetchAll(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, "/recipes.json", te.Op)
	assert.True(t, IsTransportError(err))
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second})
	_, err := c.FetchAll(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestClientContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.FetchAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetcherFunc(t *testing.T) {
	var f Fetcher = FetcherFunc(func(ctx context.Context) (Payload, error) {
		return Payload(`{}`), nil
	})
	p, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(p))
}
