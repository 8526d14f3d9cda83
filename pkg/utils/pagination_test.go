package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	e := echo.New()
	tests := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
		{"?page=3&limit=10", PaginationParams{Page: 3, PageSize: 10, Offset: 20}},
		{"?page=-1&limit=1000", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		assert.Equal(t, tt.want, GetPaginationParams(c), tt.query)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 30))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "mañ...", Truncate("mañana", 3))
}
