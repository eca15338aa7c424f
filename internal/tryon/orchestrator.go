package tryon

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tryon/internal/infra"
)

// Registry is the closed set of adapters the service can route to.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry indexes adapters by lower-cased name.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		r.adapters[strings.ToLower(a.Name())] = a
	}
	return r
}

// Lookup resolves a provider name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if r != nil {
		if a, ok := r.adapters[key]; ok {
			return a, nil
		}
	}
	return nil, &UnknownProvider{Name: name}
}

// Names lists the registered providers in order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Observer receives orchestration events, typically for metrics.
type Observer interface {
	ObserveSubmission(provider string, synchronous bool)
	ObservePoll(provider string)
	ObserveResult(provider string, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveSubmission(string, bool)             {}
func (nopObserver) ObservePoll(string)                         {}
func (nopObserver) ObserveResult(string, error, time.Duration) {}

// Options wires an Orchestrator.
type Options struct {
	Registry *Registry
	Poller   *Poller
	Observer Observer
	Logger   *infra.Logger
}

// Orchestrator drives one try-on call: build, submit, poll, normalize.
// It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	registry *Registry
	poller   *Poller
	observer Observer
	logger   *infra.Logger
}

// NewOrchestrator builds an orchestrator; nil options get defaults.
func NewOrchestrator(opts Options) *Orchestrator {
	poller := opts.Poller
	if poller == nil {
		poller = NewPoller()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	if poller.Logger == nil {
		p := *poller
		p.Logger = logger
		poller = &p
	}
	return &Orchestrator{registry: opts.Registry, poller: poller, observer: observer, logger: logger}
}

// Registry exposes the configured adapters.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Run never fails: every error is folded into a failed GenerationResult.
func (o *Orchestrator) Run(ctx context.Context, req GenerationRequest, provider string, creds Credentials) GenerationResult {
	res, err := o.Generate(ctx, req, provider, creds)
	if err != nil {
		return FailureResult(err)
	}
	return res
}

// Generate is Run with the classified error kept for callers that need it.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest, provider string, creds Credentials) (res GenerationResult, err error) {
	start := time.Now()
	logger := o.logger.With().Str("provider", provider).Logger()
	// Metric labels only carry registered names.
	label := "unknown"
	defer func() {
		if err != nil {
			err = cancelled(err)
			logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("tryon: generation failed")
		} else {
			logger.Info().Dur("elapsed", time.Since(start)).Msg("tryon: generation completed")
		}
		o.observer.ObserveResult(label, err, time.Since(start))
	}()

	adapter, err := o.registry.Lookup(provider)
	if err != nil {
		return GenerationResult{}, err
	}
	label = adapter.Name()
	if err := req.GarmentImage.Validate(); err != nil {
		return GenerationResult{}, &ConfigurationError{Reason: "garment " + err.Error()}
	}
	if req.SubjectImage != nil {
		if err := req.SubjectImage.Validate(); err != nil {
			return GenerationResult{}, &ConfigurationError{Reason: "subject " + err.Error()}
		}
	}

	sub, err := adapter.BuildSubmission(ctx, req, creds)
	if err != nil {
		return GenerationResult{}, err
	}
	outcome, err := adapter.Submit(ctx, sub)
	if err != nil {
		return GenerationResult{}, err
	}
	o.observer.ObserveSubmission(adapter.Name(), outcome.Terminal())
	if outcome.Terminal() {
		return *outcome.Result, nil
	}
	if outcome.Handle == nil {
		return GenerationResult{}, &ProviderError{Provider: adapter.Name(), Reason: "submission returned neither result nor job"}
	}

	handle := *outcome.Handle
	logger.Debug().Str("job_id", handle.ID).Msg("tryon: job submitted")
	report, err := o.poller.Poll(ctx, handle, func(ctx context.Context, h JobHandle) (StatusReport, error) {
		o.observer.ObservePoll(adapter.Name())
		return adapter.Status(ctx, h, creds)
	})
	if err != nil {
		return GenerationResult{}, err
	}
	return adapter.Normalize(report.Payload)
}
