/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"chainguard.dev/changeagent/agents/agenttrace"
	"chainguard.dev/changeagent/agents/metrics"
	"chainguard.dev/changeagent/pipeline/catalog"
	"chainguard.dev/changeagent/pipeline/errdefs"
	"chainguard.dev/changeagent/pipeline/events"
	"chainguard.dev/changeagent/pipeline/patch"
	"chainguard.dev/changeagent/pipeline/selection"
	"chainguard.dev/changeagent/repository"
	"chainguard.dev/changeagent/repository/changemanager"
	"chainguard.dev/changeagent/repository/clonemanager"
)

// ChangeRequest is one incoming request.
type ChangeRequest struct {
	RepositoryURL string
	Prompt        string
}

// Phase is a state of the run.
type Phase string

const (
	Fetching   Phase = "fetching"
	Cataloging Phase = "cataloging"
	Selecting  Phase = "selecting"
	Reading    Phase = "reading"
	Generating Phase = "generating"
	Applying   Phase = "applying"
	Committing Phase = "committing"
	Publishing Phase = "publishing"
	Complete   Phase = "complete"
	Failed     Phase = "failed"
	Cancelled  Phase = "cancelled"
)

// Git clones the repository and pushes the result.
type Git interface {
	Clone(ctx context.Context, ref repository.Ref, branch string) (*clonemanager.Lease, error)
	CommitAndPush(ctx context.Context, lease *clonemanager.Lease, c clonemanager.Commit, step clonemanager.StepFunc) (*clonemanager.PushResult, error)
}

// Publisher checks the repository up front and opens the pull request.
type Publisher interface {
	Inspect(ctx context.Context, ref repository.Ref) (*changemanager.RepositoryInfo, error)
	Open(ctx context.Context, req changemanager.Request) (*changemanager.PullRequest, error)
}

// Selector chooses the files to read.
type Selector interface {
	Select(ctx context.Context, prompt string, cat *catalog.Catalog) (selection.Result, error)
}

// Planner produces the edits.
type Planner interface {
	Plan(ctx context.Context, prompt string, snapshots []catalog.FileSnapshot) (patch.Plan, error)
}

// Timeouts bound each external call.
type Timeouts struct {
	Fetch   time.Duration
	Model   time.Duration
	Push    time.Duration
	Publish time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Fetch:   2 * time.Minute,
		Model:   3 * time.Minute,
		Push:    time.Minute,
		Publish: 30 * time.Second,
	}
}

// Credential is one required secret, identified by its variable name.
type Credential struct {
	Name  string
	Value string
}

// Credentials are checked before a run starts.
type Credentials []Credential

// Validate returns a *errdefs.ConfigurationError naming every empty credential.
func (c Credentials) Validate() error {
	var missing []string
	for _, cred := range c {
		if cred.Value == "" {
			missing = append(missing, cred.Name)
		}
	}
	if len(missing) > 0 {
		return &errdefs.ConfigurationError{Missing: missing}
	}
	return nil
}

// Orchestrator runs change requests. A single Orchestrator serves many
// concurrent runs; each run owns its working copy and event stream.
type Orchestrator struct {
	git       Git
	publisher Publisher
	selector  Selector
	planner   Planner

	credentials  Credentials
	provider     string
	tracer       agenttrace.Tracer
	metrics      *metrics.Pipeline
	timeouts     Timeouts
	branchPrefix string
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCredentials sets the credentials checked before each run.
func WithCredentials(c Credentials) Option {
	return func(o *Orchestrator) { o.credentials = c }
}

// WithProvider names the model provider for traces and metrics.
func WithProvider(name string) Option {
	return func(o *Orchestrator) { o.provider = name }
}

// WithTracer reports every run to t. Without it runs are not traced.
func WithTracer(t agenttrace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics records run metrics to m.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTimeouts overrides the external call timeouts. Zero fields keep
// their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) {
		if t.Fetch > 0 {
			o.timeouts.Fetch = t.Fetch
		}
		if t.Model > 0 {
			o.timeouts.Model = t.Model
		}
		if t.Push > 0 {
			o.timeouts.Push = t.Push
		}
		if t.Publish > 0 {
			o.timeouts.Publish = t.Publish
		}
	}
}

// WithBranchPrefix sets the prefix of pushed branch names.
func WithBranchPrefix(prefix string) Option {
	return func(o *Orchestrator) { o.branchPrefix = prefix }
}

// WithClock sets the time source used for branch names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New constructs an Orchestrator over its collaborators.
func New(git Git, publisher Publisher, selector Selector, planner Planner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		git:          git,
		publisher:    publisher,
		selector:     selector,
		planner:      planner,
		tracer:       agenttrace.Noop(),
		timeouts:     DefaultTimeouts(),
		branchPrefix: clonemanager.DefaultBranchPrefix,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewPipeline(metrics.MeterName)
	}
	return o
}

// run is the state of one change request.
type run struct {
	o      *Orchestrator
	req    ChangeRequest
	stream *events.Stream
	trace  *agenttrace.Trace

	ref      repository.Ref
	info     *changemanager.RepositoryInfo
	lease    *clonemanager.Lease
	catalog  *catalog.Catalog
	selected selection.Result
	reads    []catalog.FileSnapshot
	plan     patch.Plan
	pushed   *clonemanager.PushResult
	prURL    string
}

// Run executes req, emitting progress to stream, and returns the terminal
// phase. It closes stream before returning.
func (o *Orchestrator) Run(ctx context.Context, req ChangeRequest, stream *events.Stream) Phase {
	defer stream.Close()

	requestID := uuid.NewString()
	ctx = agenttrace.WithExecutionContext(ctx, agenttrace.ExecutionContext{
		RequestID:  requestID,
		Repository: req.RepositoryURL,
		Provider:   o.provider,
	})
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("request_id", requestID, "repository", req.RepositoryURL))
	log := clog.FromContext(ctx)

	// A detached consumer cancels everything still in flight.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stream.Detached():
			cancel()
		case <-ctx.Done():
		}
	}()

	trace := o.tracer.NewTrace(ctx, req.Prompt)
	ctx = agenttrace.WithTrace(trace.Context(), trace)

	r := &run{o: o, req: req, stream: stream, trace: trace}
	defer r.cleanup(ctx)

	err := r.execute(ctx)
	outcome := Complete
	switch {
	case err == nil:
	case isCancellation(ctx, err):
		outcome = Cancelled
		log.Warn("Consumer detached, run cancelled")
	default:
		outcome = Failed
		log.Errorf("Change request failed: %v", err)
		if emitErr := stream.Emit(ctx, events.Error{Message: err.Error()}); emitErr != nil {
			log.Warnf("Could not deliver error event: %v", emitErr)
		}
	}

	kind := errdefs.Kind(err)
	if outcome == Cancelled {
		kind = "cancelled"
	}
	o.metrics.RecordRun(ctx, string(outcome), kind)
	trace.Complete(string(outcome), r.prURL, err)
	return outcome
}

func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, events.ErrDetached) {
		return true
	}
	return errors.Is(err, context.Canceled) && ctx.Err() != nil
}

func (r *run) cleanup(ctx context.Context) {
	if r.lease == nil {
		return
	}
	if err := r.lease.Close(); err != nil {
		clog.FromContext(ctx).Warnf("Removing working copy: %v", err)
	}
}

// execute walks the phases in order.
func (r *run) execute(ctx context.Context) error {
	if err := r.o.credentials.Validate(); err != nil {
		return err
	}
	ref, err := repository.Parse(r.req.RepositoryURL)
	if err != nil {
		return err
	}
	r.ref = ref

	steps := []struct {
		phase Phase
		fn    func(context.Context) error
	}{
		{Fetching, r.fetch},
		{Cataloging, r.buildCatalog},
		{Selecting, r.selectFiles},
		{Reading, r.readFiles},
		{Generating, r.generate},
		{Applying, r.apply},
		{Committing, r.commit},
		{Publishing, r.publish},
	}
	for _, s := range steps {
		if err := r.phase(ctx, s.phase, s.fn); err != nil {
			return err
		}
	}
	return r.emit(ctx, events.Complete{PRURL: r.prURL})
}

func (r *run) phase(ctx context.Context, p Phase, fn func(context.Context) error) error {
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("phase", string(p)))
	clog.FromContext(ctx).Debug("Entering phase")

	span := r.trace.StartPhase(string(p))
	start := time.Now()
	err := fn(ctx)
	span.Complete(err)
	r.o.metrics.RecordPhase(ctx, string(p), time.Since(start), err != nil)
	return err
}

func (r *run) emit(ctx context.Context, ev events.Event) error {
	return r.stream.Emit(ctx, ev)
}

func (r *run) say(ctx context.Context, format string, args ...any) error {
	return r.emit(ctx, events.AIMessage{Message: fmt.Sprintf(format, args...)})
}

// withTimeout runs fn under the step's own deadline and converts its expiry
// into a *errdefs.TimeoutError.
func withTimeout(ctx context.Context, step string, d time.Duration, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return errdefs.Timeout(ctx, step, fn(stepCtx))
}
