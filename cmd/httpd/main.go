// Command httpd is the process entry point: it wires config, logging, the
// background job pools, the router, and the runtime/server facade
// together, then blocks until a shutdown signal arrives. Grounded on the
// teacher's cmd/server/main.go (pool registration from env-driven config,
// signal-triggered graceful close) and original_source's
// src/main.rs/examples/hello.rs for the "build handler, start server,
// wait for signal" shape.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"reactorhttp/internal/config"
	"reactorhttp/internal/handlers"
	"reactorhttp/internal/httpd"
	"reactorhttp/internal/httpreq"
	"reactorhttp/internal/httpresp"
	"reactorhttp/internal/jobs"
	"reactorhttp/internal/logging"
	"reactorhttp/internal/router"
	"reactorhttp/internal/rtctx"
	"reactorhttp/internal/sched"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New(logging.Options{Level: os.Getenv("LOG_LEVEL"), Pretty: os.Getenv("LOG_PRETTY") != ""})

	schedMgr := sched.NewManager()
	if err := schedMgr.Register("isprime", sched.NewPool("isprime", handlers.IsPrimeCtx, cfg.WorkersIsPrime, cfg.QueueIsPrime)); err != nil {
		logger.Fatal().Err(err).Msg("failed to register isprime pool")
	}

	jobMgr := jobs.NewManager(schedMgr, 10*time.Minute)
	defer jobMgr.Close()

	r := router.New()
	wireRoutes(r, schedMgr, jobMgr, cfg)

	rt, err := rtctx.Start(rtctx.Options{
		ReactorCapacity:    cfg.ReactorCapacity,
		Workers:            cfg.Workers,
		LocalQueueCapacity: cfg.LocalQueueCapacity,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start runtime")
	}

	srv := httpd.New(rt, r, httpd.Options{
		Addr:             cfg.ListenAddr,
		MaxInFlightConns: cfg.MaxInFlightConns,
		Logger:           logger,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info().Msg("shutdown signal received")
		srv.Shutdown()
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Msg("reactorhttp starting")
	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
	if err := rt.Stop(); err != nil {
		logger.Error().Err(err).Msg("runtime stop error")
	}
}

func wireRoutes(r *router.Router, schedMgr *sched.Manager, jobMgr *jobs.Manager, cfg config.Config) {
	r.Handle("GET", "/", func(req *httpreq.Request) *httpresp.Response {
		resp, _ := httpresp.OK().PlainText("hello world\n").Build()
		return resp
	})
	r.Handle("GET", "/help", func(req *httpreq.Request) *httpresp.Response {
		return handlers.Help()
	})
	r.Handle("GET", "/timestamp", func(req *httpreq.Request) *httpresp.Response {
		return handlers.Timestamp(req.Params)
	})
	r.Handle("GET", "/reverse", func(req *httpreq.Request) *httpresp.Response {
		return handlers.Reverse(req.Params)
	})
	r.Handle("GET", "/hash", func(req *httpreq.Request) *httpresp.Response {
		return handlers.Hash(req.Params)
	})
	r.Handle("GET", "/isprime", func(req *httpreq.Request) *httpresp.Response {
		resp, _ := submitSync(schedMgr, "isprime", req.Params, cfg.CPUTimeout)
		return resp
	})
	r.Handle("GET", "/metrics", func(req *httpreq.Request) *httpresp.Response {
		resp, _ := httpresp.OK().JSON([]byte(schedMgr.MetricsJSON())).Build()
		return resp
	})

	r.Handle("GET", "/jobs/submit", jobsSubmitHandler(jobMgr, cfg))
	r.Handle("GET", "/jobs/status", jobsStatusHandler(jobMgr))
	r.Handle("GET", "/jobs/result", jobsResultHandler(jobMgr))
	r.Handle("GET", "/jobs/cancel", jobsCancelHandler(jobMgr))
	r.Handle("GET", "/jobs/list", func(req *httpreq.Request) *httpresp.Response {
		resp, _ := httpresp.OK().JSON([]byte(jobMgr.ListJSON())).Build()
		return resp
	})
}

// submitSync enqueues onto the named pool and waits for a result or
// backpressure; enqueued=false means the caller should treat it as a
// rejected submission rather than a completed request.
func submitSync(m *sched.Manager, name string, params map[string]string, timeout time.Duration) (*httpresp.Response, bool) {
	p, ok := m.Pool(name)
	if !ok {
		r, _ := httpresp.NotFound().PlainText("pool not found").Build()
		return r, true
	}
	return p.SubmitAndWait(params, timeout)
}

func jobsSubmitHandler(jobMgr *jobs.Manager, cfg config.Config) router.Handler {
	return func(req *httpreq.Request) *httpresp.Response {
		task := req.Params["task"]
		if task == "" {
			r, _ := httpresp.BadRequest().PlainText("task parameter required").Build()
			return r
		}
		params := make(map[string]string, len(req.Params))
		for k, v := range req.Params {
			if k == "task" {
				continue
			}
			params[k] = v
		}
		id := jobMgr.Submit(task, params, cfg.CPUTimeout)
		if id == "" {
			r, _ := httpresp.NotFound().PlainText("no pool registered for that task").Build()
			return r
		}
		r, _ := httpresp.OK().JSON([]byte(`{"job_id":"` + id + `","status":"queued"}`)).Build()
		return r
	}
}

func jobsStatusHandler(jobMgr *jobs.Manager) router.Handler {
	return func(req *httpreq.Request) *httpresp.Response {
		id := req.Params["id"]
		if id == "" {
			r, _ := httpresp.BadRequest().PlainText("id parameter required").Build()
			return r
		}
		if body, ok := jobMgr.SnapshotJSON(id); ok {
			r, _ := httpresp.OK().JSON([]byte(body)).Build()
			return r
		}
		r, _ := httpresp.NotFound().PlainText("job not found").Build()
		return r
	}
}

func jobsResultHandler(jobMgr *jobs.Manager) router.Handler {
	return func(req *httpreq.Request) *httpresp.Response {
		id := req.Params["id"]
		if id == "" {
			r, _ := httpresp.BadRequest().PlainText("id parameter required").Build()
			return r
		}
		body, ok, err := jobMgr.ResultJSON(id)
		if !ok {
			r, _ := httpresp.NotFound().PlainText("job not found").Build()
			return r
		}
		if err != nil {
			r, _ := httpresp.BadRequest().PlainText("job not finished yet").Build()
			return r
		}
		r, _ := httpresp.OK().JSON([]byte(body)).Build()
		return r
	}
}

func jobsCancelHandler(jobMgr *jobs.Manager) router.Handler {
	return func(req *httpreq.Request) *httpresp.Response {
		id := req.Params["id"]
		if id == "" {
			r, _ := httpresp.BadRequest().PlainText("id parameter required").Build()
			return r
		}
		status, ok := jobMgr.Cancel(id)
		if !ok {
			r, _ := httpresp.NotFound().PlainText("job not found").Build()
			return r
		}
		r, _ := httpresp.OK().JSON([]byte(`{"status":"` + string(status) + `"}`)).Build()
		return r
	}
}
