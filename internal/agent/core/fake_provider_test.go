package core

import (
	"context"
	"sync"
)

// fakeProvider answers from a fixed reply or a per-call function.
type fakeProvider struct {
	name      string
	available bool
	reply     string
	err       error
	fn        func(Prompt) (string, error)

	mu    sync.Mutex
	calls []Prompt
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Complete(ctx context.Context, p Prompt) (Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()
	if !f.available {
		return Completion{}, ErrProviderUnavailable
	}
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}
	if f.fn != nil {
		text, err := f.fn(p)
		if err != nil {
			return Completion{}, err
		}
		return Completion{Text: text, Model: "fake", InputTokens: 10, OutputTokens: 20}, nil
	}
	if f.err != nil {
		return Completion{}, f.err
	}
	return Completion{Text: f.reply, Model: "fake", InputTokens: 10, OutputTokens: 20}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) lastCall() Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Prompt{}
	}
	return f.calls[len(f.calls)-1]
}

// singleRoute builds a gateway that sends every purpose to p.
func singleRoute(p Provider) *Gateway {
	routes := map[string]string{}
	for _, purpose := range []string{PurposeContext, PurposeCost, PurposePerformance, PurposeRisk, PurposeNarrative, PurposeNarrativeFallback} {
		routes[purpose] = p.Name()
	}
	return NewGateway(map[string]Provider{p.Name(): p}, routes, nil, nil)
}

// offlineGateway has no usable providers at all.
func offlineGateway() *Gateway {
	return NewGateway(nil, nil, nil, nil)
}
