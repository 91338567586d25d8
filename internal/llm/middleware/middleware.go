// Package llmmw decorates model clients with cross-cutting concerns.
package llmmw

import llmclient "uigen/internal/llm/client"

// Middleware decorates a Client to inject cross-cutting concerns
// (logging, usage accounting).
type Middleware func(llmclient.Client) llmclient.Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Client, mws ...Middleware) llmclient.Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}
