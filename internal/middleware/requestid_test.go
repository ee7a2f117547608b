package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func runRequestID(t *testing.T, header string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/v1/chat", nil)
	if header != "" {
		c.Request.Header.Set("X-Request-Id", header)
	}
	RequestID()(c)
	return c
}

func TestRequestID_EchoesCallerID(t *testing.T) {
	c := runRequestID(t, "trace-abc")
	require.Equal(t, "trace-abc", c.GetString("request_id"))
	require.Equal(t, "trace-abc", c.Writer.Header().Get("X-Request-Id"))
}

func TestRequestID_AssignsWhenMissing(t *testing.T) {
	c := runRequestID(t, "")
	id := c.GetString("request_id")
	require.NotEmpty(t, id)
	require.Equal(t, id, c.Writer.Header().Get("X-Request-Id"))
}
