package arerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsWrapped(t *testing.T) {
	base := NewNotFound("node %s missing", "abc")
	wrapped := fmt.Errorf("lookup failed: %w", base)

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, NotFound))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestConflictCarriesParam(t *testing.T) {
	err := NewConflict("tag", "realm tag not unique")
	assert.Equal(t, "tag", err.Param)
	assert.Contains(t, err.Error(), "tag")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Unavailable, cause, "append failed")
	assert.ErrorIs(t, err, cause)
}
