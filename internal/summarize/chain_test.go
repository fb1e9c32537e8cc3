package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChat struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(
	_ context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp openai.ChatCompletionResponse
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestChain_StructuredStage(t *testing.T) {
	t.Parallel()

	client := &fakeChat{
		responses: []openai.ChatCompletionResponse{
			chatResponse(`{"summary":"Go is great","key_points":["fast","simple"],` +
				`"topics":["programming"],"sentiment":"positive","entities":["Go"]}`),
		},
	}
	chain := NewChain(client, Config{Model: "test-model"}, zap.NewNop())

	summary := chain.Summarize(context.Background(), "some text", []string{"go"})

	require.False(t, summary.Degraded)
	assert.Equal(t, "Go is great", summary.Text)
	assert.Equal(t, []string{"fast", "simple"}, summary.KeyPoints)
	assert.Equal(t, "positive", summary.Sentiment)

	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].Messages[0].Content, "go")
}

func TestChain_FallsBackToPlainStage(t *testing.T) {
	t.Parallel()

	client := &fakeChat{
		responses: []openai.ChatCompletionResponse{
			chatResponse("not json at all"),
			chatResponse("A short plain summary."),
		},
	}
	chain := NewChain(client, Config{Model: "big", FallbackModel: "small", MaxTokens: 800}, zap.NewNop())

	summary := chain.Summarize(context.Background(), "some text", nil)

	require.False(t, summary.Degraded)
	assert.Equal(t, "A short plain summary.", summary.Text)
	assert.Empty(t, summary.KeyPoints)

	require.Len(t, client.requests, 2)
	assert.Equal(t, "small", client.requests[1].Model)
	// Plain stage runs with a smaller output budget.
	assert.Equal(t, 400, client.requests[1].MaxTokens)
}

func TestChain_DegradesWhenBackendUnavailable(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend down")
	client := &fakeChat{errs: []error{boom, boom}}
	chain := NewChain(client, Config{MaxInputChars: 50}, zap.NewNop())

	text := strings.Repeat("x", 80)
	summary := chain.Summarize(context.Background(), text, nil)

	require.True(t, summary.Degraded)
	assert.Equal(t, strings.Repeat("x", 50)+TruncationMarker, summary.Text)
	assert.Empty(t, summary.KeyPoints)
}

func TestChain_NilClientDegradesImmediately(t *testing.T) {
	t.Parallel()

	chain := NewChain(nil, Config{}, nil)
	summary := chain.Summarize(context.Background(), "raw text", nil)

	assert.True(t, summary.Degraded)
	assert.Equal(t, "raw text", summary.Text)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abcde", Truncate("abcde", 5))
	assert.Equal(t, "ab"+TruncationMarker, Truncate("abcde", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
