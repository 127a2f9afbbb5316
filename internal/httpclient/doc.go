// Package httpclient is the HTTP collaborator VUs send their requests through.
//
// [Client.Send] turns a [scenario.Request] into one HTTP exchange and returns
// the status, a capped copy of the body and the latency, or a
// [*TransportError] when no response was received. Connection pooling, TLS
// and timeouts are configured here, once, for the whole run:
//
//	client := httpclient.NewClient(30*time.Second, httpclient.WithBodyCapture(true))
//	resp, err := client.Send(ctx, req)
//
// # Retries
//
// [WithRetry] wraps any [Sender] with a retry loop. [DefaultRetryPolicy]
// retries transport errors, 429 and 5xx responses with exponential backoff
// and jitter:
//
//	sender := httpclient.WithRetry(client, httpclient.DefaultRetryPolicy(3, seed))
//
// # Tracing
//
// With [WithTracing], every attempt runs in a client span and, when
// propagation is enabled, carries W3C trace context headers.
package httpclient
