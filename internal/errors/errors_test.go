package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/services"
)

func TestRespondWithServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", services.ErrInvalidPercentage, http.StatusBadRequest, ErrCodeInvalidInput},
		{"invalid image", repository.ErrInvalidImage, http.StatusBadRequest, ErrCodeInvalidInput},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{"task missing", fmt.Errorf("failed: %w", services.ErrTaskNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"organization missing", services.ErrOrganizationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"unsupported", repository.ErrUnsupported, http.StatusConflict, ErrCodeNotSupported},
		{"write conflict", fmt.Errorf("update task: %w", repository.ErrConflict), http.StatusConflict, ErrCodeConflict},
		{"unavailable", repository.Unavailable("list tasks", fmt.Errorf("dial tcp: refused")), http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			RespondWithServiceError(c, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body.Code)
		})
	}
}
