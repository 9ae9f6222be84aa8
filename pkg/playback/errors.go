package playback

import (
	"errors"
	"fmt"

	"github.com/litix/data-go/pkg/model"
)

// ErrorCategory is the coarse failure category reported by a host
// player adapter alongside the underlying error.
type ErrorCategory int

const (
	// CategoryUnknown covers errors the adapter could not classify.
	CategoryUnknown ErrorCategory = iota
	// CategorySource covers source and network failures.
	CategorySource
	// CategoryRenderer covers decoder and renderer failures.
	CategoryRenderer
	// CategoryDRM covers DRM session and license failures.
	CategoryDRM
)

// ClassifyError maps a host player error and its declared category to
// the fixed ErrorInfo taxonomy. A *model.PlayerError anywhere in the
// chain wins over the category; any other error is reported with the
// unknown sentinel code and its type name as text.
func ClassifyError(category ErrorCategory, err error) *model.ErrorInfo {
	if err == nil {
		return nil
	}

	var pe *model.PlayerError
	if errors.As(err, &pe) {
		return &model.ErrorInfo{Code: pe.Code, Text: pe.Message}
	}

	code := model.ErrorUnknown
	switch category {
	case CategorySource:
		code = model.ErrorIO
	case CategoryRenderer:
		code = model.ErrorDecoder
	case CategoryDRM:
		code = model.ErrorDRM
	}
	return &model.ErrorInfo{
		Code: code,
		Text: fmt.Sprintf("%T: %v", err, err),
	}
}
