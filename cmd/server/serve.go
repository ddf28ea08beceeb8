package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type httpServer interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

type auditRunner interface {
	Run(ctx context.Context) error
}

// serve runs the HTTP server and the audit workers until ctx is cancelled or
// either of them fails. The audit workers are stopped only after the server
// has finished its in-flight requests, so events those requests record are
// still flushed.
func serve(ctx context.Context, addr string, srv httpServer, audit auditRunner) error {
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	defer stopAudit()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return audit.Run(auditCtx)
	})
	g.Go(func() error {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopAudit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
