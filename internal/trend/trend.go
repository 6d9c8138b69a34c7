// Package trend composes date parsing, the review scan, aggregation, chart
// selection and rendering into a single call.
package trend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/feedbackd/internal/aggregate"
	"github.com/kalambet/feedbackd/internal/chart"
	"github.com/kalambet/feedbackd/internal/chartkind"
	"github.com/kalambet/feedbackd/internal/daterange"
	"github.com/kalambet/feedbackd/internal/metrics"
	"github.com/kalambet/feedbackd/internal/storage"
)

// Scanner is the read side of the review store used here.
type Scanner interface {
	ScanReviews(ctx context.Context, start, end time.Time) ([]storage.Review, error)
}

// Result is everything a caller needs to show a trend: the image and the
// table it was drawn from.
type Result struct {
	Image    []byte                  `json:"-"`
	Rows     []aggregate.DailyCounts `json:"rows"`
	Interval daterange.Interval      `json:"interval"`
	Label    string                  `json:"label"`
	Kind     chartkind.Kind          `json:"chart"`
	Title    string                  `json:"title"`
}

// Service generates trend charts. It holds no per-call state.
type Service struct {
	store    Scanner
	chooser  chartkind.Chooser
	parser   *daterange.Parser
	renderer *chart.Renderer
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the source of "today" for date parsing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRenderer replaces the default chart renderer.
func WithRenderer(r *chart.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// NewService creates a Service. A nil chooser means the heuristic.
func NewService(store Scanner, chooser chartkind.Chooser, opts ...Option) *Service {
	if chooser == nil {
		chooser = chartkind.Heuristic{}
	}
	s := &Service{
		store:    store,
		chooser:  chooser,
		parser:   daterange.NewParser(),
		renderer: chart.NewRenderer(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GeneratePlot resolves prompt into a date interval, loads and aggregates the
// reviews in it and renders them. override ("bar", "line") skips chart
// selection; anything else lets the chooser decide. Only storage and
// encoding failures are returned.
func (s *Service) GeneratePlot(ctx context.Context, prompt, override string) (Result, error) {
	iv := s.parser.Parse(prompt, s.now())

	var (
		choice  chartkind.Choice
		reviews []storage.Review
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		choice = chartkind.Select(gctx, s.chooser, prompt, override)
		return nil
	})
	g.Go(func() error {
		var err error
		reviews, err = s.store.ScanReviews(gctx, iv.Start, iv.End)
		if err != nil {
			return fmt.Errorf("scanning reviews: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	rows := aggregate.Aggregate(reviews)
	label := daterange.Label(iv)

	img, err := s.renderer.Render(rows, choice.Kind, choice.Title, label)
	if err != nil {
		return Result{}, fmt.Errorf("rendering chart: %w", err)
	}
	metrics.ChartsRendered.WithLabelValues(string(choice.Kind)).Inc()

	s.logger.Debug("trend generated",
		"start", iv.Start.Format(aggregate.DateLayout),
		"end", iv.End.Format(aggregate.DateLayout),
		"rows", len(rows),
		"chart", choice.Kind,
	)

	return Result{
		Image:    img,
		Rows:     rows,
		Interval: iv,
		Label:    label,
		Kind:     choice.Kind,
		Title:    choice.Title,
	}, nil
}
