package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewValidation("question is empty")
	assert.Equal(t, "question is empty", err.Error())

	cause := errors.New("connection refused")
	err = NewProvider("embedding request failed").WithCause(cause)
	assert.Equal(t, "embedding request failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestConstructorsKindAndHTTPCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		kind     Kind
		httpCode int
	}{
		{"validation", NewValidation("bad"), KindValidation, http.StatusBadRequest},
		{"provider", NewProvider("down"), KindProvider, http.StatusServiceUnavailable},
		{"empty index", NewEmptyIndex(), KindEmptyIndex, http.StatusConflict},
		{"empty input", NewEmptyInput("blank"), KindEmptyInput, http.StatusBadRequest},
		{"generation unavailable", NewGenerationUnavailable("retry later"), KindGenerationUnavailable, http.StatusServiceUnavailable},
		{"internal", NewInternal("boom"), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.httpCode, tt.err.HTTPCode)
		})
	}
}

func TestIsKind(t *testing.T) {
	err := NewProvider("upstream down")
	assert.True(t, IsKind(err, KindProvider))
	assert.False(t, IsKind(err, KindValidation))

	// 包装后仍可识别
	wrapped := fmt.Errorf("查询失败: %w", err)
	assert.True(t, IsKind(wrapped, KindProvider))

	assert.False(t, IsKind(errors.New("plain"), KindProvider))
	assert.False(t, IsKind(nil, KindProvider))
}

func TestGetAppError(t *testing.T) {
	appErr := NewValidation("bad input")
	assert.Equal(t, appErr, GetAppError(appErr))

	wrapped := fmt.Errorf("处理失败: %w", appErr)
	assert.Equal(t, appErr, GetAppError(wrapped))

	// 非AppError统一包装为内部错误
	plain := errors.New("boom")
	got := GetAppError(plain)
	assert.Equal(t, KindInternal, got.Kind)
	assert.ErrorIs(t, got, plain)
}
