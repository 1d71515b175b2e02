package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:          http.StatusBadRequest,
		KindUnknownCategory:     http.StatusBadRequest,
		KindUnsupportedService:  http.StatusBadRequest,
		KindGeocodeFailure:      http.StatusBadGateway,
		KindIndicatorResolution: http.StatusBadGateway,
		KindUnauthorized:        http.StatusUnauthorized,
		KindInternal:            http.StatusInternalServerError,
		Kind("something_else"):  http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Status(), string(kind))
	}
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	base := Validation("Latitude", "Latitude is required")
	wrapped := fmt.Errorf("validate: %w", base)

	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, KindValidation, got.Kind)
	assert.Equal(t, "Latitude", got.Field)
	assert.Equal(t, "Latitude is required", got.Error())
}

func TestAsDefaultsToInternal(t *testing.T) {
	got := As(errors.New("boom"))
	assert.Equal(t, KindInternal, got.Kind)
	assert.False(t, got.Kind.Public())
	assert.Nil(t, As(nil))
}

func TestProviderKindsAreNotPublic(t *testing.T) {
	assert.False(t, KindGeocodeFailure.Public())
	assert.False(t, KindIndicatorResolution.Public())
	assert.True(t, KindValidation.Public())
	assert.True(t, KindUnknownCategory.Public())
}
