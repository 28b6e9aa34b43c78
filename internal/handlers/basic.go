// Package handlers holds the small set of demo route handlers that ride
// on top of the runtime: a handful of basic request/response endpoints
// plus one CPU-bound job (isprime) that exercises internal/sched and
// internal/jobs. Every handler returns a *httpresp.Response built via
// internal/httpresp rather than writing to a connection directly.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"reactorhttp/internal/httpresp"
)

// boot records process start for a future /status endpoint's uptime.
var boot = time.Now()

// Uptime reports how long this process has been running.
func Uptime() time.Duration { return time.Since(boot) }

func timestampCore() string {
	now := time.Now().UTC()
	out := map[string]any{"unix": now.Unix(), "utc": now.Format(time.RFC3339)}
	b, _ := json.Marshal(out)
	return string(b)
}

func reverseCore(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func hashCore(text string) string {
	sum := sha256.Sum256([]byte(text))
	b, _ := json.Marshal(map[string]string{"algo": "sha256", "hex": hex.EncodeToString(sum[:])})
	return string(b)
}

// Help lists the routes this demo server exposes.
func Help() *httpresp.Response {
	r, _ := httpresp.OK().PlainText(strings.TrimSpace(`
/                 -> hello world
/help             -> this listing
/timestamp        -> current unix/UTC time as JSON
/reverse?s=TEXT   -> TEXT reversed
/hash?s=TEXT      -> sha256 of TEXT as JSON
/isprime?n=N      -> primality of N as JSON (synchronous)
/jobs/submit?task=isprime&n=N -> submit the same job asynchronously
/jobs/status?id=ID
/jobs/result?id=ID
/jobs/cancel?id=ID
/jobs/list
/metrics          -> per-pool worker/queue metrics as JSON
`) + "\n").Build()
	return r
}

// Timestamp returns the current time as JSON.
func Timestamp(_ map[string]string) *httpresp.Response {
	r, _ := httpresp.OK().JSON([]byte(timestampCore())).Build()
	return r
}

// Reverse reverses params["s"].
func Reverse(params map[string]string) *httpresp.Response {
	s, ok := params["s"]
	if !ok {
		r, _ := httpresp.BadRequest().PlainText("s parameter required").Build()
		return r
	}
	r, _ := httpresp.OK().PlainText(reverseCore(s) + "\n").Build()
	return r
}

// Hash returns the sha256 of params["s"] as JSON.
func Hash(params map[string]string) *httpresp.Response {
	s, ok := params["s"]
	if !ok {
		r, _ := httpresp.BadRequest().PlainText("s parameter required").Build()
		return r
	}
	r, _ := httpresp.OK().JSON([]byte(hashCore(s))).Build()
	return r
}
