// Package pipeline implements an ordered chain of request-transforming
// policies terminating in an HTTP transport.
//
// Each Policy may inspect or modify the outbound request and then invoke the
// remainder of the chain. This keeps cross-cutting concerns (authorization,
// retries, user-agent stamping, future telemetry) composable without any
// type hierarchy:
//
//	p := pipeline.New(nil,
//		pipeline.NewUserAgentPolicy("trustedsign/dev"),
//		pipeline.NewRetryPolicy(pipeline.DefaultRetryOptions()),
//		pipeline.NewAuthorizationPolicy(cred, scope),
//	)
//	resp, err := p.Do(req)
//
// The authorization policy sits after the retry policy so every retry
// attempt carries a freshly acquired token.
package pipeline
