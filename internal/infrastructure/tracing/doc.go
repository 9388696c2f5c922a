// Package tracing tags every API request with trace and span
// identifiers so an install failure can be tied back to its request.
//
// Context arrives via the X-Trace-ID and X-Span-ID headers and is
// echoed back in the response. Finished spans go through a buffered
// channel to a single logging goroutine, keeping handlers off the
// logging path.
//
//	tracer := tracing.New("bundle-manager", logger)
//	router.Use(tracing.HTTPMiddleware(tracer))
package tracing
