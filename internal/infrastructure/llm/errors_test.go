package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"rate limit status", statusErr(429), true, false},
		{"rate limit text", errors.New("anthropic: Overloaded"), true, false},
		{"server error", statusErr(503), true, true},
		{"bad request", statusErr(400), false, false},
		{"malformed", domain.WrapError(domain.ErrMalformedResponse, "op", errors.New("x")), true, false},
		{"unknown", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyError(tc.err)
			assert.Equal(t, tc.retryable, got.Retryable)
			assert.Equal(t, tc.record, got.RecordFailure)
		})
	}
}

func TestWrapCallError(t *testing.T) {
	assert.True(t, domain.IsKind(wrapCallError("op", statusErr(429)), domain.ErrRateLimited))
	assert.True(t, domain.IsKind(wrapCallError("op", errors.New("boom")), domain.ErrAnalysis))
	assert.ErrorIs(t, wrapCallError("op", context.Canceled), context.Canceled)
	assert.NoError(t, wrapCallError("op", nil))
}
