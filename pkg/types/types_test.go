package types

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestVariantString(t *testing.T) {
	tests := []struct {
		variant Variant
		want    string
	}{
		{VariantProject, "project"},
		{VariantFolder, "folder"},
		{VariantObject, "object"},
		{VariantUser, "user"},
		{VariantServiceAccount, "service_account"},
		{VariantGroup, "group"},
		{VariantRealm, "realm"},
		{Variant(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.variant.String())
		})
	}
}

func TestPermissionLevelOrdering(t *testing.T) {
	assert.Less(t, PermissionLevel(RelPermissionNone), PermissionLevel(RelPermissionRead))
	assert.Less(t, PermissionLevel(RelPermissionRead), PermissionLevel(RelPermissionAppend))
	assert.Less(t, PermissionLevel(RelPermissionAppend), PermissionLevel(RelPermissionWrite))
	assert.Less(t, PermissionLevel(RelPermissionWrite), PermissionLevel(RelPermissionAdmin))
	assert.Equal(t, -1, PermissionLevel(RelBelongsTo))
}

func TestDefaultRelationTypesCoversPermissionFamily(t *testing.T) {
	reg := DefaultRelationTypes()
	for _, code := range []uint32{
		RelPermissionNone, RelPermissionRead, RelPermissionAppend,
		RelPermissionWrite, RelPermissionAdmin, RelBelongsTo,
		RelGroupPartOfRealm, RelGroupAdministratesRealm,
	} {
		rt, ok := reg[code]
		assert.True(t, ok, "missing relation type for code %d", code)
		assert.NotEmpty(t, rt.Forward)
		assert.NotEmpty(t, rt.Backward)
	}
}

func TestNewIDMonotonic(t *testing.T) {
	now := time.Now()
	entropy := ulid.Monotonic(ulid.DefaultEntropy(), 0)

	first := NewID(now, entropy)
	second := NewID(now, entropy)

	assert.Equal(t, -1, first.Compare(second))
}
