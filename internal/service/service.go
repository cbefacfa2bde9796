package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/mwhite7112/woodpantry-reconcile/internal/clients"
	"github.com/mwhite7112/woodpantry-reconcile/internal/convert"
	"github.com/mwhite7112/woodpantry-reconcile/internal/density"
	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ledger"
	"github.com/mwhite7112/woodpantry-reconcile/internal/matcher"
	"github.com/mwhite7112/woodpantry-reconcile/internal/metrics"
	"github.com/mwhite7112/woodpantry-reconcile/internal/units"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUpstream          = errors.New("upstream service failed")
	ErrReloadUnavailable = errors.New("no density source configured")
)

type PantrySource interface {
	GetPantry(ctx context.Context) ([]domain.PantryItem, error)
	ApplyConsumption(ctx context.Context, recipeID string, deltas []domain.PantryDelta) error
}

type RecipeSource interface {
	GetRecipe(ctx context.Context, id string) (*clients.Recipe, error)
}

type DensitySource interface {
	GetDensities(ctx context.Context) (*density.Table, error)
}

type Ledger interface {
	Record(ctx context.Context, c *ledger.Completion) error
	List(ctx context.Context, recipeID string, limit int) ([]ledger.Completion, error)
}

// RecipePlan is the usage plan for a whole recipe against the live pantry.
type RecipePlan struct {
	RecipeID       string               `json:"recipe_id"`
	Title          string               `json:"title"`
	Plans          []UsagePlan          `json:"plans"`
	Deltas         []domain.PantryDelta `json:"deltas"`
	Warnings       []string             `json:"warnings"`
	DensityVersion int                  `json:"density_version"`
}

// LinesPlan is the usage plan for ad-hoc lines. Deltas are computed against
// the snapshot that was planned, whether given inline or fetched live.
type LinesPlan struct {
	Plans          []UsagePlan          `json:"plans"`
	Deltas         []domain.PantryDelta `json:"deltas"`
	Warnings       []string             `json:"warnings"`
	DensityVersion int                  `json:"density_version"`
}

// Completion is the result of marking a recipe cooked. Event is nil when no
// ledger is configured.
type Completion struct {
	Plan  *RecipePlan        `json:"plan"`
	Event *ledger.Completion `json:"event,omitempty"`
}

type Service struct {
	pantry     PantrySource
	recipes    RecipeSource
	dictionary DensitySource
	ledger     Ledger

	catalog   *units.Catalog
	densities *density.Store
	parser    *ingredient.Parser
	matcher   *matcher.Matcher

	metrics *metrics.Metrics
	log     *zap.Logger
}

type Option func(*Service)

func WithDictionary(d DensitySource) Option { return func(s *Service) { s.dictionary = d } }
func WithLedger(l Ledger) Option            { return func(s *Service) { s.ledger = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *zap.Logger) Option       { return func(s *Service) { s.log = l } }
func WithMatcher(m *matcher.Matcher) Option { return func(s *Service) { s.matcher = m } }

func New(pantry PantrySource, recipes RecipeSource, catalog *units.Catalog, densities *density.Store, opts ...Option) *Service {
	s := &Service{
		pantry:    pantry,
		recipes:   recipes,
		catalog:   catalog,
		densities: densities,
		parser:    ingredient.NewParser(catalog),
		matcher:   matcher.New(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ParseLines(lines []string) []ingredient.ParsedLine {
	out := make([]ingredient.ParsedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, s.parser.Parse(l))
	}
	return out
}

// Convert converts between named units. An empty from is a bare item count
// and an empty to is "each".
func (s *Service) Convert(amount float64, from, to, ingredientName, size string) (convert.Result, error) {
	var fromUnit *units.Unit
	if from != "" {
		u, ok := s.catalog.Lookup(from)
		if !ok {
			return convert.Result{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, from)
		}
		fromUnit = u
	}
	toUnit, err := s.catalog.Resolve(to)
	if err != nil {
		return convert.Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	res, err := convert.New(s.catalog, s.densities.Load()).ConvertSized(amount, fromUnit, ingredientName, size, toUnit)
	if errors.Is(err, convert.ErrInvalidAmount) {
		return convert.Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err == nil {
		s.metrics.Conversion(string(res.Tier))
	}
	return res, err
}

// calculator binds the density snapshot current at call time; a reload
// during the request does not affect it.
func (s *Service) calculator() (*Calculator, int) {
	table := s.densities.Load()
	return NewCalculator(s.catalog, table, s.matcher), table.Version()
}

// PlanLines plans lines against items, or against the live pantry when
// items is nil.
func (s *Service) PlanLines(ctx context.Context, lines []string, items []domain.PantryItem) (*LinesPlan, error) {
	if items == nil {
		live, err := s.pantry.GetPantry(ctx)
		if err != nil {
			return nil, upstream("fetch pantry", err)
		}
		items = live
	}

	calc, version := s.calculator()
	plans, err := calc.ComputeUsagePlan(s.ParseLines(lines), items)
	if err != nil {
		return nil, err
	}
	s.observe(plans)
	return &LinesPlan{
		Plans:          plans,
		Deltas:         PantryDeltas(plans, items),
		Warnings:       Warnings(plans),
		DensityVersion: version,
	}, nil
}

// PlanRecipe fetches the recipe and pantry in parallel and plans the recipe.
func (s *Service) PlanRecipe(ctx context.Context, recipeID string) (*RecipePlan, error) {
	var (
		wg        sync.WaitGroup
		recipe    *clients.Recipe
		items     []domain.PantryItem
		recipeErr error
		pantryErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		recipe, recipeErr = s.recipes.GetRecipe(ctx, recipeID)
	}()
	go func() {
		defer wg.Done()
		items, pantryErr = s.pantry.GetPantry(ctx)
	}()
	wg.Wait()

	if recipeErr != nil {
		return nil, upstream("fetch recipe", recipeErr)
	}
	if pantryErr != nil {
		return nil, upstream("fetch pantry", pantryErr)
	}

	calc, version := s.calculator()
	plans, err := calc.ComputeUsagePlan(s.ParseLines(recipe.Lines()), items)
	if err != nil {
		s.log.Error("pantry data integrity violation",
			zap.String("recipe_id", recipeID), zap.Error(err))
		return nil, fmt.Errorf("plan recipe %s: %w", recipeID, err)
	}
	s.observe(plans)

	return &RecipePlan{
		RecipeID:       recipe.ID,
		Title:          recipe.Title,
		Plans:          plans,
		Deltas:         PantryDeltas(plans, items),
		Warnings:       Warnings(plans),
		DensityVersion: version,
	}, nil
}

// CompleteRecipe plans the recipe, asks the pantry service to apply the
// deltas and records the completion. Nothing is recorded when the pantry
// update fails.
func (s *Service) CompleteRecipe(ctx context.Context, recipeID string) (*Completion, error) {
	plan, err := s.PlanRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	if len(plan.Deltas) > 0 {
		if err := s.pantry.ApplyConsumption(ctx, recipeID, plan.Deltas); err != nil {
			return nil, upstream("apply consumption", err)
		}
	}
	s.metrics.Completion()

	out := &Completion{Plan: plan}
	if s.ledger != nil {
		event := completionEvent(plan)
		if err := s.ledger.Record(ctx, event); err != nil {
			// The pantry has already been updated; report the plan anyway.
			s.log.Error("record completion failed",
				zap.String("recipe_id", recipeID), zap.Error(err))
		} else {
			out.Event = event
		}
	}

	s.log.Info("recipe completed",
		zap.String("recipe_id", recipeID),
		zap.Int("lines", len(plan.Plans)),
		zap.Int("items_updated", len(plan.Deltas)),
		zap.Int("warnings", len(plan.Warnings)),
	)
	return out, nil
}

func completionEvent(plan *RecipePlan) *ledger.Completion {
	c := &ledger.Completion{
		RecipeID:    plan.RecipeID,
		RecipeTitle: plan.Title,
		LinesTotal:  len(plan.Plans),
		Items:       make([]ledger.CompletionItem, 0, len(plan.Deltas)),
	}
	minConf := math.Inf(1)
	for _, p := range plan.Plans {
		switch p.Outcome {
		case OutcomeExact:
			c.LinesExact++
		case OutcomePartial:
			c.LinesPartial++
		case OutcomeUnavailable:
			c.LinesMissing++
		case OutcomeSkipped:
			c.LinesSkipped++
		}
		if p.Confidence != nil && *p.Confidence < minConf {
			minConf = *p.Confidence
		}
	}
	if !math.IsInf(minConf, 1) {
		c.MinConfidence = &minConf
	}
	for _, d := range plan.Deltas {
		c.Items = append(c.Items, ledger.CompletionItem{
			ItemID:    d.ItemID,
			Name:      d.Name,
			Unit:      d.Unit,
			Consumed:  d.Consumed,
			Remaining: d.Remaining,
			Exhausted: d.Exhausted,
		})
	}
	return c
}

// ReloadDensities replaces the density table with the dictionary service's
// copy. On failure the current table stays in place.
func (s *Service) ReloadDensities(ctx context.Context) (int, error) {
	if s.dictionary == nil {
		return 0, ErrReloadUnavailable
	}
	table, err := s.dictionary.GetDensities(ctx)
	if err != nil {
		s.metrics.Reload("dictionary", 0, err)
		s.log.Warn("density reload failed", zap.Error(err))
		return 0, upstream("fetch densities", err)
	}

	prev := s.densities.Swap(table)
	s.metrics.Reload("dictionary", table.Version(), nil)
	s.log.Info("density table reloaded",
		zap.String("source", "dictionary"),
		zap.Int("previous_version", prev.Version()),
		zap.Int("version", table.Version()),
		zap.Int("entries", table.Len()),
	)
	return table.Version(), nil
}

// Completions lists recorded completions, newest first.
func (s *Service) Completions(ctx context.Context, recipeID string, limit int) ([]ledger.Completion, error) {
	if s.ledger == nil {
		return []ledger.Completion{}, nil
	}
	return s.ledger.List(ctx, recipeID, limit)
}

// DensityVersion is the version of the table currently served.
func (s *Service) DensityVersion() int {
	return s.densities.Load().Version()
}

func (s *Service) Catalog() *units.Catalog {
	return s.catalog
}

func (s *Service) observe(plans []UsagePlan) {
	for _, p := range plans {
		s.metrics.PlanLine(string(p.Outcome), string(p.Issue))
		for _, m := range p.MatchedPantryItems {
			s.metrics.Conversion(string(m.ConversionTier))
		}
	}
}

func upstream(op string, err error) error {
	if errors.Is(err, domain.ErrRecipeNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
