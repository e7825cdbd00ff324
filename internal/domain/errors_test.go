package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteError_IsErrRemote(t *testing.T) {
	err := NewRemoteError("pinecone upsert", 503, errors.New("unavailable"))
	wrapped := fmt.Errorf("publish: %w", err)

	assert.ErrorIs(t, wrapped, ErrRemote)
	assert.NotErrorIs(t, wrapped, ErrConfiguration)
	assert.Contains(t, err.Error(), "status 503")

	var re *RemoteError
	assert.True(t, errors.As(wrapped, &re))
	assert.Equal(t, 503, re.StatusCode)
}

func TestRemoteError_UnwrapsCause(t *testing.T) {
	err := NewRemoteError("qdrant search", 0, context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "qdrant search: context deadline exceeded", err.Error())
}

func TestHelpers(t *testing.T) {
	assert.ErrorIs(t, Configurationf("missing %s", "PINECONE_API_KEY"), ErrConfiguration)
	assert.ErrorIs(t, InvalidParametersf("overlap %d", 5), ErrInvalidParameters)
	assert.Equal(t, "configuration error: missing key", Configurationf("missing key").Error())
}
