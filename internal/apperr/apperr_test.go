package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfLooksThroughWrapping(t *testing.T) {
	base := New(NotFound, "user %s not found", "a@b.c")
	wrapped := fmt.Errorf("service.WhoAmI: %w", base)

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(wrapped, Conflict))
	assert.Equal(t, "user a@b.c not found", wrapped.(interface{ Unwrap() error }).Unwrap().Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, Internal))
}

func TestFieldsCarriesDetail(t *testing.T) {
	err := Fields("invalid input", map[string]string{"email": "invalid email"})

	e, ok := As(fmt.Errorf("wrap: %w", err))
	assert.True(t, ok)
	assert.Equal(t, Validation, e.Kind)
	assert.Equal(t, "invalid email", e.Fields["email"])
	assert.Equal(t, "validation", e.Kind.String())
}
