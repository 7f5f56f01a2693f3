package billing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subkit/subkit/pkg/billing"
)

func TestStaticCatalog(t *testing.T) {
	t.Parallel()

	catalog := billing.NewStaticCatalog(
		billing.Plan{ID: "monthly", Name: "Monthly", Kind: billing.PlanMonthly, PriceID: "price_m", Active: true},
		billing.Plan{ID: "yearly", Name: "Yearly", Kind: billing.PlanYearly, PriceID: "price_y", Active: true},
		billing.Plan{ID: "legacy", Name: "Legacy", Kind: billing.PlanMonthly, PriceID: "price_l", Active: false},
	)

	t.Run("find by id", func(t *testing.T) {
		t.Parallel()

		plan, err := catalog.FindByID("monthly")
		require.NoError(t, err)
		assert.Equal(t, "price_m", plan.PriceID)

		_, err = catalog.FindByID("bogus")
		assert.ErrorIs(t, err, billing.ErrPlanNotFound)
	})

	t.Run("find active by kind skips inactive plans", func(t *testing.T) {
		t.Parallel()

		plan, err := catalog.FindActiveByKind(billing.PlanMonthly)
		require.NoError(t, err)
		assert.Equal(t, "monthly", plan.ID)

		_, err = catalog.FindActiveByKind(billing.PlanTrial)
		assert.ErrorIs(t, err, billing.ErrPlanNotFound)
	})

	t.Run("find active by price id", func(t *testing.T) {
		t.Parallel()

		plan, err := catalog.FindActiveByPriceID("price_y")
		require.NoError(t, err)
		assert.Equal(t, "yearly", plan.ID)

		_, err = catalog.FindActiveByPriceID("price_l")
		assert.ErrorIs(t, err, billing.ErrPlanNotFound, "inactive plans are not resolvable by price")
	})

	t.Run("list active", func(t *testing.T) {
		t.Parallel()

		plans := catalog.ListActive()
		require.Len(t, plans, 2)
		for _, p := range plans {
			assert.True(t, p.Active)
		}
	})
}

func TestNewStaticCatalogValidation(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty catalog", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { billing.NewStaticCatalog() })
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			billing.NewStaticCatalog(
				billing.Plan{ID: "monthly", Kind: billing.PlanMonthly},
				billing.Plan{ID: "monthly", Kind: billing.PlanYearly},
			)
		})
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			billing.NewStaticCatalog(billing.Plan{ID: "weekly", Kind: "weekly"})
		})
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("loads plans from yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - id: monthly
    name: Monthly
    kind: monthly
    price_id: price_m
    active: true
  - id: yearly
    name: Yearly
    kind: yearly
    price_id: price_y
    active: true
`), 0o600))

		catalog, err := billing.LoadCatalog(path)
		require.NoError(t, err)

		plan, err := catalog.FindByID("yearly")
		require.NoError(t, err)
		assert.Equal(t, billing.PlanYearly, plan.Kind)
	})

	t.Run("fails on unknown kind", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - id: weekly
    kind: weekly
`), 0o600))

		_, err := billing.LoadCatalog(path)
		assert.Error(t, err)
	})

	t.Run("fails on empty file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte("plans: []\n"), 0o600))

		_, err := billing.LoadCatalog(path)
		assert.Error(t, err)
	})

	t.Run("fails on missing file", func(t *testing.T) {
		t.Parallel()

		_, err := billing.LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
