package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BloodLink/pkg/llm"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCompletions(t *testing.T, reply string, seen *[]map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*seen = append(*seen, body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  body["model"],
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestLLMHandler_PreparationTips(t *testing.T) {
	var seen []map[string]interface{}
	srv := fakeCompletions(t, "Drink water.", &seen)
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	h := llm.NewLLMHandler("test-key", srv.URL, "", time.Second, logger)

	reply, err := h.PreparationTips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Drink water.", reply)

	require.Len(t, seen, 1)
	assert.Equal(t, "gpt-4.1-mini", seen[0]["model"])
	assert.EqualValues(t, 150, seen[0]["max_tokens"])
	msgs := seen[0]["messages"].([]interface{})
	assert.Len(t, msgs, 2)
}

func TestLLMHandler_ChatSkipsBlankMessages(t *testing.T) {
	var seen []map[string]interface{}
	srv := fakeCompletions(t, "Hello!", &seen)
	defer srv.Close()

	h := llm.NewLLMHandler("test-key", srv.URL, "gpt-4o", time.Second, nil)
	reply, err := h.Chat(context.Background(), []llm.Message{
		{Role: "user", Content: "Can I donate after a cold?"},
		{Role: "user", Content: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
	assert.Len(t, seen[0]["messages"].([]interface{}), 1)

	_, err = h.Chat(context.Background(), nil)
	assert.Error(t, err)
}

func TestLLMHandler_NotConfigured(t *testing.T) {
	h := llm.NewLLMHandler("", "", "", 0, nil)
	assert.Nil(t, h)

	_, err := h.PostCareTips(context.Background())
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}
