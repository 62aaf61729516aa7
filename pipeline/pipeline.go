package pipeline

import (
	"fmt"
	"net/http"

	"github.com/attestly/trustedsign/interfaces"
)

// Next invokes the remainder of a pipeline for the given request.
type Next func(req *http.Request) (*http.Response, error)

// Policy is a single stage of the request pipeline. Implementations must be
// safe for concurrent use and must not keep per-request state between calls.
type Policy interface {
	// Do processes the request and forwards it by calling next. A policy
	// may short-circuit by returning without calling next.
	Do(req *http.Request, next Next) (*http.Response, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(req *http.Request, next Next) (*http.Response, error)

// Do implements Policy.
func (f PolicyFunc) Do(req *http.Request, next Next) (*http.Response, error) {
	return f(req, next)
}

// Pipeline is an immutable ordered list of policies terminating in an HTTP
// client. A single Pipeline may be used concurrently by any number of
// callers.
type Pipeline struct {
	policies  []Policy
	transport *http.Client
}

// New builds a pipeline over the given transport. A nil transport uses
// http.DefaultClient. Policies run in the order given, outermost first.
func New(transport *http.Client, policies ...Policy) Pipeline {
	if transport == nil {
		transport = http.DefaultClient
	}
	return Pipeline{policies: policies, transport: transport}
}

// Do sends the request through every policy and finally the transport.
// Transport-level send failures are wrapped with interfaces.ErrTransport.
func (p Pipeline) Do(req *http.Request) (*http.Response, error) {
	var run func(i int) Next
	run = func(i int) Next {
		if i == len(p.policies) {
			return func(req *http.Request) (*http.Response, error) {
				resp, err := p.transport.Do(req)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", interfaces.ErrTransport, err)
				}
				return resp, nil
			}
		}
		return func(req *http.Request) (*http.Response, error) {
			return p.policies[i].Do(req, run(i+1))
		}
	}
	return run(0)(req)
}
