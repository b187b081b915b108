package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coursemate/config"
)

func init() {
	// Winzige Backoff-Basis, damit Retry-Tests schnell durchlaufen.
	retryBaseDelay = 1 * time.Millisecond
}

func testClient(baseURL string) *Client {
	return NewClient(&config.Config{
		OpenAIBaseURL:     baseURL,
		OpenAIAPIKey:      "test-key",
		OpenAIModel:       "gpt-4o-mini",
		OpenAITemperature: 0.7,
		OpenAITimeoutSec:  5,
		OpenAIMaxRetries:  3,
	}, zap.NewNop())
}

func completionBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return b
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write(completionBody(`[{"paperID":"P1"}]`))
	}))
	defer ts.Close()

	text, err := testClient(ts.URL).Complete(context.Background(), "system says", "user asks")
	require.NoError(t, err)
	assert.Equal(t, `[{"paperID":"P1"}]`, text)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "system says", gotReq.Messages[0].Content)
	assert.Equal(t, "user asks", gotReq.Messages[1].Content)
}

func TestCompleteRetriesOn429(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(completionBody("ok"))
	}))
	defer ts.Close()

	text, err := testClient(ts.URL).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCompleteDoesNotRetryOn400(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCompleteEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	// 1 Erstversuch + 3 Retries
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}
