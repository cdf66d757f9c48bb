/*
Package tracing provides lightweight request tracing.

Spans are logged through zap by a buffered collector. Trace context travels
in the X-Trace-ID and X-Span-ID headers and in context.Context.

	tracer := tracing.New("apphost", logger.Logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "ws.call users.get")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
