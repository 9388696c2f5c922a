package tracing

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware traces every request through the API. Incoming trace
// headers continue an existing trace; otherwise a new one is minted.
// The span identifiers are echoed back in the response headers so a
// client can quote them when reporting a failure.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(HeaderTraceID); traceID != "" {
			ctx = context.WithValue(ctx, ctxTraceID, traceID)
		}
		if parentID := c.GetHeader(HeaderSpanID); parentID != "" {
			ctx = context.WithValue(ctx, ctxSpanID, parentID)
		}

		span, ctx := tracer.Start(ctx, c.FullPath())
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.url", c.Request.URL.String())
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderTraceID, span.TraceID)
		c.Header(HeaderSpanID, span.SpanID)

		c.Next()

		span.Status = c.Writer.Status()
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.Err = c.Errors.Last()
		}
		tracer.Finish(span)
	}
}
