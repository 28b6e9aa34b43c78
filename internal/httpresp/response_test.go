package httpresp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRequiresStatus(t *testing.T) {
	_, err := NewBuilder().Build()
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestOKPlainTextSerializes(t *testing.T) {
	resp, err := OK().PlainText("hi").Build()
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)

	wire := string(resp.Bytes())
	require.True(t, strings.HasPrefix(wire, "HTTP/1.1 200 Ok\r\n"))
	require.Contains(t, wire, "Content-Length: 2\r\n")
	require.Contains(t, wire, "Content-Type: text/plain; charset=utf-8\r\n")
	require.True(t, strings.HasSuffix(wire, "\r\n\r\nhi"))
}

func TestNotFoundJSON(t *testing.T) {
	resp, err := NotFound().JSON([]byte(`{"error":"missing"}`)).Build()
	require.NoError(t, err)
	require.Equal(t, 404, resp.Code)
	require.Equal(t, "Not Found", resp.Phrase)
	ct, ok := resp.Headers.Get("content-type")
	require.True(t, ok)
	require.Equal(t, "application/json", ct)
}
