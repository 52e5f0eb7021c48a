package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncAdapter(t *testing.T) {
	var got string
	e := Func(func(_ context.Context, text string) ([]float64, error) {
		got = text
		return []float64{1, 2, 3}, nil
	})

	v, err := e.Embed(context.Background(), "Kenya AA bright")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v)
	assert.Equal(t, "Kenya AA bright", got)
}

func TestNewProviders(t *testing.T) {
	ctx := context.Background()

	e, err := New(ctx, Config{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = New(ctx, Config{})
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = New(ctx, Config{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(ctx, Config{Provider: "gemini"})
	assert.Error(t, err)

	_, err = New(ctx, Config{Provider: "word2vec"})
	assert.Error(t, err)

	e, err = New(ctx, Config{Provider: "openai", OpenAIAPIKey: "sk-test", Dimensions: 384})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, e)
}
