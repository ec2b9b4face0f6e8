package httpx

import "net/http"

// Middleware wraps an http.Handler with extra behaviour.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h so that the first listed middleware runs
// first on the way in.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Stage is one named step of the admission pipeline. Naming the stages and
// applying them as a declared list keeps the evaluation order an explicit
// contract instead of a side effect of registration order.
type Stage struct {
	Name string
	Wrap Middleware
}

// Pipeline is an ordered list of stages; the first stage sees the request
// first. The canonical server pipeline is:
//
//	security-headers -> rate-limit -> authn -> csrf
//
// Any stage may short-circuit with a rejection; headers queued by earlier
// stages remain on the response.
type Pipeline []Stage

// Apply wraps h in every stage, first stage outermost.
func (p Pipeline) Apply(h http.Handler) http.Handler {
	for i := len(p) - 1; i >= 0; i-- {
		h = p[i].Wrap(h)
	}
	return h
}

// Names returns the stage names in evaluation order, for logs and tests.
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}
