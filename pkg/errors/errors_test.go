package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "codecraft-ai-api/pkg/errors"
)

func TestAsAppError_Direct(t *testing.T) {
	err := apperrors.New(apperrors.CodeIngestionInvalid, "bad input")

	got := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeIngestionInvalid, got.Code)
	assert.Equal(t, http.StatusBadRequest, got.HTTPStatus)
}

func TestAsAppError_WrappedChain(t *testing.T) {
	// 编排框架会给节点错误套一层普通包装，错误码必须穿透
	inner := apperrors.ErrMissingCredential.WithDetail("openai")
	wrapped := fmt.Errorf("node codegen.extract: %w", inner)
	twice := fmt.Errorf("chain invoke: %w", wrapped)

	got := apperrors.AsAppError(twice)
	require.Equal(t, apperrors.CodeMissingCredential, got.Code)
	assert.Equal(t, "openai", got.Detail)

	assert.True(t, apperrors.IsAppError(twice))
}

func TestAsAppError_Unknown(t *testing.T) {
	got := apperrors.AsAppError(fmt.Errorf("socket closed"))

	assert.Equal(t, apperrors.CodeUnknown, got.Code)
	assert.EqualError(t, got.Unwrap(), "socket closed")
	assert.False(t, apperrors.IsAppError(fmt.Errorf("socket closed")))
}

func TestWithDetail_DoesNotMutatePredefined(t *testing.T) {
	detailed := apperrors.ErrMalformedOutput.WithDetail("missing brace")

	assert.Equal(t, "missing brace", detailed.Detail)
	assert.Empty(t, apperrors.ErrMalformedOutput.Detail)
}
