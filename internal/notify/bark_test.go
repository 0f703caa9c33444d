package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarkNotifierSend(t *testing.T) {
	var gotQuery map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"title": q.Get("title"),
			"body":  q.Get("body"),
			"group": q.Get("group"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n, err := NewBarkNotifier(ts.URL + "/")
	require.NoError(t, err)
	require.NoError(t, n.Send(context.Background(), "Scheduled command failed", "action failed"))

	assert.Equal(t, "Scheduled command failed", gotQuery["title"])
	assert.Equal(t, "action failed", gotQuery["body"])
	assert.Equal(t, "roombalink", gotQuery["group"])
}

func TestBarkNotifierErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	n, err := NewBarkNotifier(ts.URL)
	require.NoError(t, err)
	assert.Error(t, n.Send(context.Background(), "t", "b"))
}

func TestBarkNotifierEmptyURL(t *testing.T) {
	_, err := NewBarkNotifier("")
	assert.Error(t, err)
}
