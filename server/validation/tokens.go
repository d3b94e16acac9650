package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/huulkit/huulkit/errors"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer counts the tokens of a text.
type Tokenizer interface {
	CountTokens(text string) int
}

type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// EstimateTokenizer approximates one token per four characters. It is used
// when no tiktoken encoding is available.
type EstimateTokenizer struct{}

func (EstimateTokenizer) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// TokenCounter enforces the input budget of the model routes.
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter loads the tiktoken encoding for model. An empty model, or
// one tiktoken cannot load, falls back to EstimateTokenizer.
func NewTokenCounter(model string, logger *zap.Logger) *TokenCounter {
	if model == "" {
		return &TokenCounter{encoding: EstimateTokenizer{}}
	}
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if logger != nil {
			logger.Warn("Falling back to estimated token counts",
				zap.String("model", model),
				zap.Error(err),
			)
		}
		return &TokenCounter{encoding: EstimateTokenizer{}}
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}
}

// NewTokenCounterWith uses the given tokenizer.
func NewTokenCounterWith(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountTokens counts the tokens of text.
func (tc *TokenCounter) CountTokens(text string) int {
	return tc.encoding.CountTokens(text)
}

// ValidateTokens rejects text longer than maxTokens. A non-positive limit
// disables the check.
func (tc *TokenCounter) ValidateTokens(requestID, text string, maxTokens int) *errors.HuulkitError {
	if maxTokens <= 0 {
		return nil
	}
	count := tc.CountTokens(text)
	if count <= maxTokens {
		return nil
	}
	return errors.NewValidationError(requestID,
		fmt.Sprintf("Text is too long (%d tokens, limit %d)", count, maxTokens),
		map[string]interface{}{
			"fields": []FieldError{{
				Field:   "text",
				Message: "token limit exceeded",
				Code:    "token_limit_exceeded",
			}},
			"tokens":     count,
			"max_tokens": maxTokens,
		})
}
