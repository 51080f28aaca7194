package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerr "github.com/xilidan/meetings/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   domainerr.Kind
		wantMsg    string
	}{
		{
			name:       "not found",
			err:        fmt.Errorf("meeting abc: %w", domainerr.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantKind:   domainerr.KindNotFound,
			wantMsg:    "meeting abc: not found",
		},
		{
			name:       "invalid state",
			err:        domainerr.ErrInvalidState,
			wantStatus: http.StatusConflict,
			wantKind:   domainerr.KindInvalidState,
			wantMsg:    "invalid state",
		},
		{
			name:       "internal hides message",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   domainerr.KindInternal,
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body.Error.Kind)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
		})
	}
}

func TestParseJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Board Sync"}`))
	require.NoError(t, ParseJSON(req, &v))
	assert.Equal(t, "Board Sync", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	err := ParseJSON(req, &v)
	assert.True(t, domainerr.IsValidation(err))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	err = ParseJSON(req, &v)
	assert.True(t, domainerr.IsValidation(err))
}
