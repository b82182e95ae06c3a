package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// adminHTTPServer wraps the admin gin router in an *http.Server with
// graceful shutdown.
type adminHTTPServer struct {
	addr    string
	handler http.Handler
	log     *zap.SugaredLogger

	srv *http.Server
}

func (a *adminHTTPServer) Start() {
	a.srv = &http.Server{
		Addr:         a.addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Errorw("admin http server error", "err", err)
		}
	}()
}

func (a *adminHTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Warnw("admin http shutdown error", "err", err)
	}
}
