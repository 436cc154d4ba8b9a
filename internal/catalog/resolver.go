// Package catalog resolves product queries, relaxing over-specific filters
// for collection views until something is found.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/models"
)

// MaxRungs bounds the relaxation ladder.
const MaxRungs = 3

// Querier runs one catalog query.
type Querier interface {
	Products(ctx context.Context, f models.ProductFilter) (*models.ProductPage, error)
}

// Result is the outcome of one resolution.
type Result struct {
	// Page is never nil. It is empty when the ladder was exhausted.
	Page *models.ProductPage
	// Plan is the rung that produced Page, or the last rung tried.
	Plan models.ProductQueryPlan
	// Queries is the number of requests sent.
	Queries int
}

// Relaxed reports whether Page came from a broadened filter.
func (r Result) Relaxed() bool { return r.Plan.Rung > 0 }

type memoKey struct {
	filter       models.ProductFilter
	isCollection bool
}

type memo struct {
	key    memoKey
	result Result
}

// Resolver runs the relaxation ladder and remembers the last successful
// outcome so an unchanged filter is never queried twice.
type Resolver struct {
	api Querier
	log *zap.Logger

	mu   sync.Mutex
	last *memo
}

// NewResolver returns a Resolver over q. log may be nil.
func NewResolver(q Querier, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{api: q, log: log}
}

// Ladder returns the three rungs for f. Rung 0 is f itself; rung 1 keeps only
// the most specific of subcategory, category and main category; rung 2 keeps
// only the main category, or nothing. Paging is carried unchanged.
func Ladder(f models.ProductFilter) []models.ProductQueryPlan {
	paging := models.ProductFilter{Page: f.Page, Limit: f.Limit}

	single := paging
	switch {
	case f.Subcategory != "":
		single.Subcategory = f.Subcategory
	case f.Category != "":
		single.Category = f.Category
	case f.MainCategory != "":
		single.MainCategory = f.MainCategory
	}

	broad := paging
	broad.MainCategory = f.MainCategory

	return []models.ProductQueryPlan{
		{ProductFilter: f, Rung: 0},
		{ProductFilter: single, Rung: 1},
		{ProductFilter: broad, Rung: 2},
	}
}

// Resolve queries the catalog for f. Strict views (isCollection false) only
// run rung 0. Collection views move down the ladder while a rung yields no
// products or fails; a rung whose filter repeats an earlier one is skipped.
//
// When every rung came back empty the result is an empty page, unless a rung
// failed, in which case the most recent failure is returned.
func (r *Resolver) Resolve(ctx context.Context, f models.ProductFilter, isCollection bool) (Result, error) {
	key := memoKey{filter: f, isCollection: isCollection}

	r.mu.Lock()
	if r.last != nil && r.last.key == key {
		res := r.last.result
		r.mu.Unlock()
		return res, nil
	}
	r.mu.Unlock()

	res, err := r.run(ctx, f, isCollection)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	// failures are not remembered so a repeated query can recover
	if err != nil {
		return res, err
	}
	r.mu.Lock()
	r.last = &memo{key: key, result: res}
	r.mu.Unlock()
	return res, nil
}

// Invalidate forgets the remembered outcome so the next Resolve queries again.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.last = nil
	r.mu.Unlock()
}

func (r *Resolver) run(ctx context.Context, f models.ProductFilter, isCollection bool) (Result, error) {
	plans := Ladder(f)
	if !isCollection {
		plans = plans[:1]
	}

	res := Result{Page: &models.ProductPage{Products: []models.Product{}}}
	var lastErr error
	tried := make([]models.ProductFilter, 0, len(plans))

	for _, plan := range plans {
		if seen(tried, plan.ProductFilter) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tried = append(tried, plan.ProductFilter)
		res.Plan = plan
		res.Queries++

		page, err := r.api.Products(ctx, plan.ProductFilter)
		if err != nil {
			lastErr = err
			r.log.Debug("catalog query failed",
				zap.Int("rung", plan.Rung),
				zap.Error(err),
			)
			continue
		}
		if page != nil && len(page.Products) > 0 {
			res.Page = page
			if plan.Rung > 0 {
				r.log.Debug("catalog filter relaxed", zap.Int("rung", plan.Rung))
			}
			return res, nil
		}
		r.log.Debug("catalog query empty", zap.Int("rung", plan.Rung))
	}

	if lastErr != nil {
		return res, fmt.Errorf("load products: %w", lastErr)
	}
	return res, nil
}

func seen(tried []models.ProductFilter, f models.ProductFilter) bool {
	for _, t := range tried {
		if t == f {
			return true
		}
	}
	return false
}
