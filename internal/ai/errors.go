package ai

import (
	"fmt"

	"github.com/kiranshivaraju/storyforge/pkg/models"
)

var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = models.ErrInvalidResponse
)

// InvalidThemeError reports a theme the generator refuses to accept.
type InvalidThemeError struct {
	Reason string
}

func (e *InvalidThemeError) Error() string {
	return fmt.Sprintf("invalid theme: %s", e.Reason)
}
