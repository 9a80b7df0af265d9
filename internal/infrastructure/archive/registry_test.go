package archive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/domain/entity"
	"codecraft-ai-api/internal/infrastructure/archive"
	apperrors "codecraft-ai-api/pkg/errors"
)

func TestRegistry_PutGet(t *testing.T) {
	r := archive.NewRegistry(time.Hour, time.Minute, 0)
	defer r.Close()

	r.Put(&entity.GeneratedProject{ID: "p1", Name: "shop_backend", Archive: []byte("zip")})

	p, err := r.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "shop_backend", p.Name)
	assert.False(t, p.ExpiresAt.IsZero())
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := archive.NewRegistry(time.Hour, time.Minute, 0)
	defer r.Close()

	_, err := r.Get("missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeProjectNotFound, apperrors.AsAppError(err).Code)
}

func TestRegistry_TTLExpiry(t *testing.T) {
	r := archive.NewRegistry(10*time.Millisecond, time.Hour, 0)
	defer r.Close()

	r.Put(&entity.GeneratedProject{ID: "p1"})

	_, err := r.Get("p1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = r.Get("p1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeProjectNotFound, apperrors.AsAppError(err).Code)
}

func TestRegistry_CapacityEviction(t *testing.T) {
	r := archive.NewRegistry(time.Hour, time.Minute, 2)
	defer r.Close()

	r.Put(&entity.GeneratedProject{ID: "p1"})
	time.Sleep(2 * time.Millisecond)
	r.Put(&entity.GeneratedProject{ID: "p2"})
	time.Sleep(2 * time.Millisecond)
	r.Put(&entity.GeneratedProject{ID: "p3"})

	assert.Equal(t, 2, r.Len())

	_, err := r.Get("p1")
	assert.Error(t, err, "oldest project should be evicted")

	_, err = r.Get("p3")
	assert.NoError(t, err)
}

func TestRegistry_Delete(t *testing.T) {
	r := archive.NewRegistry(time.Hour, time.Minute, 0)
	defer r.Close()

	r.Put(&entity.GeneratedProject{ID: "p1"})
	r.Delete("p1")

	_, err := r.Get("p1")
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}
