package httpreq

import (
	"testing"

	"github.com/stretchr/testify/require"

	"reactorhttp/internal/httpparse"
)

func TestFromParsedCarriesFields(t *testing.T) {
	parsed, n, err := httpparse.Parse([]byte("GET /a HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	require.Positive(t, n)

	req := FromParsed(parsed)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/a", req.Path)
	host, ok := req.Headers.Get("host")
	require.True(t, ok)
	require.Equal(t, "x", host)
}

func TestBuilderRequiresAllFields(t *testing.T) {
	_, err := NewBuilder().Method("GET").Build()
	require.ErrorIs(t, err, ErrIncomplete)

	req, err := NewBuilder().Method("GET").Path("/").Version("HTTP/1.1").Build()
	require.NoError(t, err)
	require.Equal(t, "GET", req.Method)
}
