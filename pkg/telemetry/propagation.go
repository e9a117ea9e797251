// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectContext writes the active trace context into outgoing HTTP
// headers using the propagator installed by Init (W3C TraceContext
// plus Baggage).
func InjectContext(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// PropagateToRequest prepares an outgoing request for a traced hop:
// trace headers are injected and the request is bound to ctx, so the
// guard model call appears as a child of the check span.
//
//	req, _ := http.NewRequest(http.MethodPost, url, body)
//	req = telemetry.PropagateToRequest(ctx, req)
//	resp, err := client.Do(req)
func PropagateToRequest(ctx context.Context, r *http.Request) *http.Request {
	InjectContext(ctx, r.Header)
	return r.WithContext(ctx)
}
