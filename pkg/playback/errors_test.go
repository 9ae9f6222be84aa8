package playback

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litix/data-go/pkg/model"
)

func TestClassifyError_Categories(t *testing.T) {
	tests := []struct {
		name     string
		category ErrorCategory
		want     model.ErrorCode
	}{
		{"unknown", CategoryUnknown, model.ErrorUnknown},
		{"source", CategorySource, model.ErrorIO},
		{"renderer", CategoryRenderer, model.ErrorDecoder},
		{"drm", CategoryDRM, model.ErrorDRM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ClassifyError(tt.category, errors.New("boom"))

			require.NotNil(t, info)
			assert.Equal(t, tt.want, info.Code)
			assert.Contains(t, info.Text, "boom")
		})
	}
}

func TestClassifyError_TypedErrorWinsOverCategory(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", model.NewPlayerError(model.ErrorDecoder, "codec died"))

	info := ClassifyError(CategorySource, err)

	require.NotNil(t, info)
	assert.Equal(t, model.ErrorDecoder, info.Code)
	assert.Equal(t, "codec died", info.Text)
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(CategorySource, nil))
}

func TestClassifyError_TextIncludesTypeName(t *testing.T) {
	info := ClassifyError(CategoryUnknown, errors.New("boom"))

	require.NotNil(t, info)
	assert.Contains(t, info.Text, "*errors.errorString")
}
