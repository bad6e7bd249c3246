package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPostsSlackPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	New(srv.URL).Notify(context.Background(), "docs PR opened")
	assert.Equal(t, "docs PR opened", got["text"])
}

func TestNotifySwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Must not panic or block; failures are log-only.
	New(srv.URL).Notify(context.Background(), "hello")
}

func TestEmptyURLIsNoop(t *testing.T) {
	New("").Notify(context.Background(), "ignored")

	var nilNotifier *Notifier
	nilNotifier.Notify(context.Background(), "also ignored")
}
