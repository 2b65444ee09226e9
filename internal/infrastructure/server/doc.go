// Package server wires the ottr HTTP server: the session store, the coverage
// converter and accumulator, the event socket, the REST API and metrics,
// behind gin with recovery, tracing, metrics, CORS and optional rate limiting.
//
// Example Usage:
//
//	srv, err := server.NewServer(cfg, logger)
//	if err != nil {
//		return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx)
package server
