package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-docqa-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStreamEmitsDeltasUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"Hello"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":" world"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}` + "\n"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")

	stream, err := p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var got string
	for delta := range stream {
		require.NoError(t, delta.Err)
		got += delta.Content
	}
	assert.Equal(t, "Hello world", got)
}

func TestChatStreamClosesAfterConsumerCancels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Malformed chunk forces the producer onto its error path.
		w.Write([]byte("not json\n"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := p.ChatStream(ctx, []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	// The consumer walks away without reading a single delta.
	cancel()

	// The producer must still wind down and close the channel instead of
	// blocking forever on the unread error delta.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel never closed after cancellation")
		}
	}
}
