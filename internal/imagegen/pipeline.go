package imagegen

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bouquet/internal/domain"
)

const (
	RoleSubject = "subject"
	RoleObject  = "object"
)

const ledgerWriteTimeout = 5 * time.Second

// Observer receives one sample per finished composite run.
type Observer interface {
	RecordComposite(model, outcome string, duration time.Duration)
}

// CompositorOptions wires the pipeline stages together. Ledger and Observer
// are optional.
type CompositorOptions struct {
	Acquirer  *Acquirer
	Generator Generator
	Persister *Persister
	Ledger    domain.CompositeRepository
	Observer  Observer
	Logger    *zerolog.Logger
}

// Compositor runs acquire, build, generate, resolve and persist for one
// request. It holds no per-request state and is safe for concurrent use.
type Compositor struct {
	acquirer  *Acquirer
	generator Generator
	persister *Persister
	ledger    domain.CompositeRepository
	observer  Observer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewCompositor(opts CompositorOptions) (*Compositor, error) {
	if opts.Acquirer == nil {
		return nil, errors.New("imagegen: acquirer is required")
	}
	if opts.Persister == nil {
		return nil, errors.New("imagegen: persister is required")
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "compositor").Logger()
	}
	return &Compositor{
		acquirer:  opts.Acquirer,
		generator: opts.Generator,
		persister: opts.Persister,
		ledger:    opts.Ledger,
		observer:  opts.Observer,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Model reports the generation model in use, or "" without a generator.
func (c *Compositor) Model() string {
	if c.generator == nil {
		return ""
	}
	return c.generator.Model()
}

// Composite produces one composited artifact. Any stage failure ends the run
// with a *domain.Error; the upstream is never called when acquisition fails.
func (c *Compositor) Composite(ctx context.Context, in Input) (*Outcome, error) {
	start := c.now()
	in.Subject.Role = RoleSubject
	in.Object.Role = RoleObject
	styleHint := strings.TrimSpace(in.StyleHint)
	if styleHint == "" {
		styleHint = DefaultStyleHint
	}
	record := &domain.CompositeRecord{
		Model:         c.Model(),
		StyleHint:     styleHint,
		SubjectSource: in.Subject.Label(),
		ObjectSource:  in.Object.Label(),
		CreatedAt:     start.UTC(),
	}

	outcome, err := c.run(ctx, in, styleHint)
	c.finish(ctx, record, outcome, err, start)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (c *Compositor) run(ctx context.Context, in Input, styleHint string) (*Outcome, error) {
	if c.generator == nil || !c.generator.HasCredentials() {
		return nil, domain.ConfigurationError("OPENROUTER_API_KEY is not configured")
	}

	var subject, object ImageBuffer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buf, err := c.acquirer.Acquire(gctx, in.Subject)
		subject = buf
		return err
	})
	g.Go(func() error {
		buf, err := c.acquirer.Acquire(gctx, in.Object)
		object = buf
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	payload := BuildPayload(CompositionRequest{Subject: subject, Object: object, StyleHint: styleHint})

	// The call is billed once issued, so a client disconnect must not discard it.
	detached := context.WithoutCancel(ctx)
	raw, err := c.generator.Complete(detached, payload)
	if err != nil {
		return nil, err
	}
	result, err := Resolve(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("kind", result.Kind.String()).
		Str("convention", result.Convention).
		Msg("resolved generation result")

	artifact, err := c.persister.Persist(detached, result)
	if err != nil {
		return nil, err
	}

	source := result.URL
	if result.Kind == ResultInline {
		source = result.Convention
	}
	return &Outcome{
		ID:           artifact.ID,
		Artifact:     artifact,
		Model:        c.generator.Model(),
		StyleHint:    styleHint,
		SubjectName:  firstNonEmpty(subject.Name, in.Subject.Label()),
		ObjectName:   firstNonEmpty(object.Name, in.Object.Label()),
		ResultSource: source,
	}, nil
}

func (c *Compositor) finish(ctx context.Context, record *domain.CompositeRecord, outcome *Outcome, err error, start time.Time) {
	elapsed := c.now().Sub(start)
	record.DurationMS = elapsed.Milliseconds()

	label := "success"
	if err != nil {
		kind := domain.KindOf(err)
		label = string(kind)
		record.ID = uuid.NewString()
		record.Status = domain.CompositeStatusFailed
		record.ErrorKind = string(kind)
		record.ErrorDetail = err.Error()
		c.logger.Error().
			Err(err).
			Str("kind", string(kind)).
			Str("subject", record.SubjectSource).
			Str("object", record.ObjectSource).
			Dur("elapsed", elapsed).
			Msg("composite failed")
	} else {
		record.ID = outcome.ID
		record.Status = domain.CompositeStatusSucceeded
		record.ResultName = outcome.Artifact.Name
		record.ResultURL = outcome.Artifact.URL
		c.logger.Info().
			Str("id", outcome.ID).
			Str("model", outcome.Model).
			Str("result", outcome.Artifact.Name).
			Int("bytes", outcome.Artifact.Size).
			Dur("elapsed", elapsed).
			Msg("composite stored")
	}

	if c.observer != nil {
		c.observer.RecordComposite(record.Model, label, elapsed)
	}
	if c.ledger != nil {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
		defer cancel()
		if lerr := c.ledger.Save(lctx, record); lerr != nil {
			c.logger.Warn().Err(lerr).Str("id", record.ID).Msg("record composite run")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
