package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHelpListsRoutes(t *testing.T) {
	r := Help()
	require.Equal(t, 200, r.Code)
	require.Contains(t, string(r.Body), "/isprime")
}

func TestTimestampIsJSON(t *testing.T) {
	r := Timestamp(nil)
	ct, _ := r.Headers.Get("content-type")
	require.Equal(t, "application/json", ct)
	require.Contains(t, string(r.Body), `"unix"`)
}

func TestReverseRequiresParam(t *testing.T) {
	r := Reverse(map[string]string{})
	require.Equal(t, 400, r.Code)
}

func TestReverseReversesText(t *testing.T) {
	r := Reverse(map[string]string{"s": "abc"})
	require.Equal(t, "cba\n", string(r.Body))
}

func TestHashIsSHA256JSON(t *testing.T) {
	r := Hash(map[string]string{"s": ""})
	require.Contains(t, string(r.Body), "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
}

func TestIsPrimeRejectsNegative(t *testing.T) {
	r := IsPrime(map[string]string{"n": "-1"})
	require.Equal(t, 400, r.Code)
}

func TestIsPrimeDivisionKnownValues(t *testing.T) {
	cases := map[string]bool{"2": true, "3": true, "4": false, "17": true, "1": false, "997": true}
	for n, want := range cases {
		r := IsPrime(map[string]string{"n": n, "method": "division"})
		require.Equal(t, 200, r.Code)
		require.Contains(t, string(r.Body), boolJSON(want), "n=%s", n)
	}
}

func TestIsPrimeMillerRabinAgreesWithDivision(t *testing.T) {
	for _, n := range []string{"2", "97", "100", "7919", "7920"} {
		div := IsPrime(map[string]string{"n": n, "method": "division"})
		mr := IsPrime(map[string]string{"n": n, "method": "miller-rabin"})
		require.Equal(t, strings.Contains(string(div.Body), `"is_prime":true`),
			strings.Contains(string(mr.Body), `"is_prime":true`), "n=%s", n)
	}
}

func TestIsPrimeCtxCancellationDuringDivision(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := IsPrimeCtx(ctx, map[string]string{"n": "999999999999999989", "method": "division"})
	require.Equal(t, 503, r.Code)
}

func boolJSON(b bool) string {
	if b {
		return `"is_prime":true`
	}
	return `"is_prime":false`
}
