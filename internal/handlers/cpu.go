package handlers

import (
	"context"
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"time"

	"reactorhttp/internal/httpresp"
)

// IsPrime answers /isprime synchronously; no cancellation is possible
// since it never suspends on a background pool.
func IsPrime(params map[string]string) *httpresp.Response {
	return IsPrimeCtx(context.Background(), params)
}

// IsPrimeCtx is the sched.TaskFunc-shaped version used by the "isprime"
// background pool: it checks ctx periodically so a timed-out or canceled
// job can abort a long division-method search.
//
// Params: n (required, >= 0), method=division|miller-rabin (default
// division).
func IsPrimeCtx(ctx context.Context, params map[string]string) *httpresp.Response {
	n64, err := strconv.ParseInt(params["n"], 10, 64)
	if err != nil || n64 < 0 {
		r, _ := httpresp.BadRequest().PlainText("n must be integer >= 0").Build()
		return r
	}

	method := params["method"]
	if method == "" {
		method = "division"
	}
	if method != "division" && method != "miller-rabin" {
		r, _ := httpresp.BadRequest().PlainText("use method=division|miller-rabin").Build()
		return r
	}

	type outT struct {
		N       int64  `json:"n"`
		IsPrime bool   `json:"is_prime"`
		Method  string `json:"method"`
		Elapsed int64  `json:"elapsed_ms"`
	}
	out := outT{N: n64, Method: method}
	start := time.Now()

	switch method {
	case "division":
		prime, canceled := isPrimeByDivision(ctx, n64)
		if canceled {
			r, _ := httpresp.Unavailable().PlainText("job canceled").Build()
			return r
		}
		out.IsPrime = prime
	case "miller-rabin":
		out.IsPrime = mrIsPrime64Ctx(ctx, uint64(n64))
	}

	out.Elapsed = time.Since(start).Milliseconds()
	b, _ := json.Marshal(out)
	r, _ := httpresp.OK().JSON(b).Build()
	return r
}

func isPrimeByDivision(ctx context.Context, n int64) (prime bool, canceled bool) {
	switch {
	case n < 2:
		return false, false
	case n == 2 || n == 3:
		return true, false
	case n%2 == 0:
		return false, false
	}
	limit := int64(math.Sqrt(float64(n)))
	for d := int64(3); d <= limit; d += 2 {
		if (d-3)&1023 == 0 {
			select {
			case <-ctx.Done():
				return false, true
			default:
			}
		}
		if n%d == 0 {
			return false, false
		}
	}
	return true, false
}

// mrIsPrime64Ctx is a deterministic Miller-Rabin test for uint64 values,
// using the base set known to be exact across the full 64-bit range.
func mrIsPrime64Ctx(ctx context.Context, n uint64) bool {
	if n < 2 {
		return false
	}
	small := [...]uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}
	for _, p := range small {
		if n == p {
			return true
		}
		if n%p == 0 {
			return false
		}
	}

	r := 0
	d := n - 1
	for d&1 == 0 {
		d >>= 1
		r++
	}

	bases := [...]uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}
	nBI := new(big.Int).SetUint64(n)
	dBI := new(big.Int).SetUint64(d)

	for i, a := range bases {
		if i&1 == 0 {
			select {
			case <-ctx.Done():
				return false
			default:
			}
		}
		if a%n == 0 {
			continue
		}
		x := new(big.Int).Exp(new(big.Int).SetUint64(a), dBI, nBI)
		if x.Sign() == 0 || x.Cmp(big.NewInt(1)) == 0 || x.Cmp(new(big.Int).Sub(nBI, big.NewInt(1))) == 0 {
			continue
		}
		composite := true
		for j := 0; j < r-1; j++ {
			x.Mul(x, x).Mod(x, nBI)
			if x.Cmp(new(big.Int).Sub(nBI, big.NewInt(1))) == 0 {
				composite = false
				break
			}
		}
		if composite {
			return false
		}
	}
	return true
}
