package catalog

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/api/apitest"
	"github.com/atinyakov/GophShop/internal/models"
)

// fakeCatalog answers from a table keyed by filter and records every query.
type fakeCatalog struct {
	mu      sync.Mutex
	results map[models.ProductFilter][]models.Product
	errs    map[models.ProductFilter]error
	queries []models.ProductFilter
}

func (f *fakeCatalog) Products(_ context.Context, q models.ProductFilter) (*models.ProductPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.errs[q]; err != nil {
		return nil, err
	}
	products := f.results[q]
	return &models.ProductPage{Products: products, Total: len(products), Page: q.Page}, nil
}

var (
	smartWatches = models.ProductFilter{MainCategory: "Men", Category: "Watches", Subcategory: "Smart", Page: 1, Limit: 12}
	smartOnly    = models.ProductFilter{Subcategory: "Smart", Page: 1, Limit: 12}
	menOnly      = models.ProductFilter{MainCategory: "Men", Page: 1, Limit: 12}
	menProducts  = []models.Product{{ID: "p-1", Name: "Loafer", MainCategory: "Men"}}
)

func TestLadder(t *testing.T) {
	tests := []struct {
		name   string
		filter models.ProductFilter
		rung1  models.ProductFilter
		rung2  models.ProductFilter
	}{
		{
			name:   "all three",
			filter: smartWatches,
			rung1:  smartOnly,
			rung2:  menOnly,
		},
		{
			name:   "category and main",
			filter: models.ProductFilter{MainCategory: "Women", Category: "Bags", Limit: 5},
			rung1:  models.ProductFilter{Category: "Bags", Limit: 5},
			rung2:  models.ProductFilter{MainCategory: "Women", Limit: 5},
		},
		{
			name:   "category only",
			filter: models.ProductFilter{Category: "Bags"},
			rung1:  models.ProductFilter{Category: "Bags"},
			rung2:  models.ProductFilter{},
		},
		{
			name:   "empty",
			filter: models.ProductFilter{Page: 2},
			rung1:  models.ProductFilter{Page: 2},
			rung2:  models.ProductFilter{Page: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := Ladder(tt.filter)
			require.Len(t, plans, MaxRungs)
			for i, p := range plans {
				assert.Equal(t, i, p.Rung)
			}
			assert.Equal(t, tt.filter, plans[0].ProductFilter)
			assert.Equal(t, tt.rung1, plans[1].ProductFilter)
			assert.Equal(t, tt.rung2, plans[2].ProductFilter)
		})
	}
}

func TestResolve_CollectionRelaxesToMainCategory(t *testing.T) {
	cat := &fakeCatalog{results: map[models.ProductFilter][]models.Product{menOnly: menProducts}}
	r := NewResolver(cat, nil)

	res, err := r.Resolve(context.Background(), smartWatches, true)

	require.NoError(t, err)
	assert.Equal(t, menProducts, res.Page.Products)
	assert.Equal(t, 2, res.Plan.Rung)
	assert.True(t, res.Relaxed())
	assert.Equal(t, []models.ProductFilter{smartWatches, smartOnly, menOnly}, cat.queries)
}

func TestResolve_StopsAtFirstNonEmptyRung(t *testing.T) {
	cat := &fakeCatalog{results: map[models.ProductFilter][]models.Product{
		smartOnly: {{ID: "p-2"}},
		menOnly:   menProducts,
	}}
	r := NewResolver(cat, nil)

	res, err := r.Resolve(context.Background(), smartWatches, true)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Plan.Rung)
	assert.Equal(t, 2, res.Queries)
}

func TestResolve_StrictViewDoesNotRelax(t *testing.T) {
	cat := &fakeCatalog{results: map[models.ProductFilter][]models.Product{menOnly: menProducts}}
	r := NewResolver(cat, nil)

	res, err := r.Resolve(context.Background(), smartWatches, false)

	require.NoError(t, err)
	require.NotNil(t, res.Page)
	assert.Empty(t, res.Page.Products)
	assert.Equal(t, 0, res.Plan.Rung)
	assert.Len(t, cat.queries, 1)
}

func TestResolve_ErrorCountsAsEmpty(t *testing.T) {
	cat := &fakeCatalog{
		results: map[models.ProductFilter][]models.Product{menOnly: menProducts},
		errs:    map[models.ProductFilter]error{smartWatches: errors.New("timeout")},
	}
	r := NewResolver(cat, nil)

	res, err := r.Resolve(context.Background(), smartWatches, true)

	require.NoError(t, err)
	assert.Equal(t, menProducts, res.Page.Products)
}

func TestResolve_ExhaustedKeepsError(t *testing.T) {
	boom := &api.FetchError{Kind: api.KindHTTP, Status: http.StatusBadGateway, Message: "catalog down", Op: "products"}
	cat := &fakeCatalog{errs: map[models.ProductFilter]error{
		smartWatches: errors.New("first"),
		smartOnly:    errors.New("second"),
		menOnly:      boom,
	}}
	r := NewResolver(cat, nil)

	res, err := r.Resolve(context.Background(), smartWatches, true)

	var fe *api.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "catalog down", fe.Message)
	assert.Empty(t, res.Page.Products)
	assert.Equal(t, 3, res.Queries)
}

func TestResolve_ExhaustedWithoutErrorIsEmpty(t *testing.T) {
	cat := &fakeCatalog{}
	r := NewResolver(cat, nil)

	res, err := r.Resolve(context.Background(), smartWatches, true)

	require.NoError(t, err)
	assert.Empty(t, res.Page.Products)
	assert.Equal(t, 2, res.Plan.Rung)
}

func TestResolve_SkipsDuplicateRungs(t *testing.T) {
	cat := &fakeCatalog{}
	r := NewResolver(cat, nil)

	res, err := r.Resolve(context.Background(), menOnly, true)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Queries)
	assert.Equal(t, []models.ProductFilter{menOnly}, cat.queries)
}

func TestResolve_Memoized(t *testing.T) {
	cat := &fakeCatalog{results: map[models.ProductFilter][]models.Product{menOnly: menProducts}}
	r := NewResolver(cat, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, smartWatches, true)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, smartWatches, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, cat.queries, 3)

	// any change restarts from rung 0
	changed := smartWatches
	changed.Page = 2
	res, err := r.Resolve(ctx, changed, true)
	require.NoError(t, err)
	assert.Equal(t, changed, cat.queries[3])
	assert.Equal(t, 2, res.Plan.Rung)

	r.Invalidate()
	_, err = r.Resolve(ctx, changed, true)
	require.NoError(t, err)
	assert.Len(t, cat.queries, 9)
}

func TestResolve_FailureIsNotMemoized(t *testing.T) {
	refused := &api.FetchError{Kind: api.KindNetwork, Message: "connection refused", Op: "products"}
	cat := &fakeCatalog{errs: map[models.ProductFilter]error{
		smartWatches: refused,
		smartOnly:    refused,
		menOnly:      refused,
	}}
	r := NewResolver(cat, nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, smartWatches, true)
	require.ErrorIs(t, err, refused)

	// the catalog comes back
	cat.mu.Lock()
	cat.errs = nil
	cat.results = map[models.ProductFilter][]models.Product{menOnly: menProducts}
	cat.mu.Unlock()

	res, err := r.Resolve(ctx, smartWatches, true)
	require.NoError(t, err)
	assert.Equal(t, menProducts, res.Page.Products)
	assert.Len(t, cat.queries, 6)

	// the successful outcome is remembered
	_, err = r.Resolve(ctx, smartWatches, true)
	require.NoError(t, err)
	assert.Len(t, cat.queries, 6)
}

func TestResolve_Cancelled(t *testing.T) {
	cat := &fakeCatalog{}
	r := NewResolver(cat, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, smartWatches, true)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cat.queries)

	// a cancelled run is not remembered
	_, err = r.Resolve(context.Background(), smartWatches, true)
	require.NoError(t, err)
	assert.Len(t, cat.queries, 3)
}

func TestResolve_AgainstBackend(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddProducts(
		models.Product{ID: "p-1", Name: "Loafer", MainCategory: "Men", Category: "Shoes"},
		models.Product{ID: "p-2", Name: "Chrono", MainCategory: "Men", Category: "Watches", Subcategory: "Analog"},
	)
	r := NewResolver(api.New(srv.URL, srv.Client(), nil), nil)

	res, err := r.Resolve(context.Background(), smartWatches, true)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Plan.Rung)
	assert.Len(t, res.Page.Products, 2)
	assert.Equal(t, 3, srv.Hits("GET /products"))
}
