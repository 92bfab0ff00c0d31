package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(KindModelAPI, "generate", errors.New("429 too many requests")))

	assert.True(t, errors.Is(err, ErrModelAPI))
	assert.False(t, errors.Is(err, ErrEmbeddingService))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindModelAPI, kind)
	assert.Contains(t, err.Error(), "ModelAPIError: generate: 429 too many requests")
}

func TestError_Retryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient(KindEmbeddingService, "embed", errors.New("503"))))
	assert.False(t, IsRetryable(New(KindEmbeddingService, "embed", errors.New("401"))))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestFromContext_DeadlineBecomesTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	err := FromContext(ctx, KindModelAPI, "invoke", errors.New("request aborted"))
	assert.True(t, errors.Is(err, ErrRequestTimeout))
}

func TestFromContext_KeepsClassifiedErrors(t *testing.T) {
	orig := New(KindPersistence, "write", errors.New("disk full"))
	err := FromContext(context.Background(), KindModelAPI, "invoke", orig)
	assert.Same(t, orig, err)

	err = FromContext(context.Background(), KindModelAPI, "invoke", errors.New("boom"))
	assert.True(t, errors.Is(err, ErrModelAPI))
	assert.Nil(t, FromContext(context.Background(), KindModelAPI, "invoke", nil))
}
