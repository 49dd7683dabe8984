package llm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("missing API key for remote provider")
	ErrMissingModel  = errors.New("missing model for remote provider")
)

type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}
