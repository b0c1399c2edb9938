package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipnetic/clipnetic/internal/types"
)

func TestNotify(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New("tok")
	err := n.Notify(context.Background(), srv.URL, types.Notification{UploadedFileID: "f1", SourceKey: "a/b.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "f1", got["uploaded_file_id"])
	assert.Nil(t, got["error"])
}

func TestNotify_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	msg := "boom"
	err := New("").Notify(context.Background(), srv.URL, types.Notification{Error: &msg})
	assert.ErrorContains(t, err, "status 500")
}
