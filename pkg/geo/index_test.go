package geo

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/fieldmap/pkg/models"
)

func item(x, y float64) *models.FieldItem {
	return &models.FieldItem{Kind: models.KindPlant, Position: models.Vec3{X: x, Y: y}}
}

func TestNewItemIndex(t *testing.T) {
	index := NewItemIndex()
	assert.NotNil(t, index)
	assert.NotNil(t, index.tree)
	assert.Equal(t, 0, index.Size())
}

func TestInsertOrder(t *testing.T) {
	index := NewItemIndex()
	a, b := item(0, 0), item(1, 1)
	assert.Equal(t, 0, index.Insert(a))
	assert.Equal(t, 1, index.Insert(b))
	assert.Equal(t, 2, index.Size())
	assert.Same(t, b, index.Item(1))
	assert.Equal(t, []*models.FieldItem{a, b}, index.Items())
}

func TestWithin(t *testing.T) {
	index := NewItemIndex()
	index.Insert(item(0.05, 0))    // 0
	index.Insert(item(10, 10))     // 1
	index.Insert(item(0, 0.09))    // 2
	index.Insert(item(0.09, 0.09)) // 3, inside the box but outside the radius
	index.Insert(item(0, 0))       // 4

	orders, err := index.Within(0, 0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, orders)

	// zero radius still finds exact matches
	orders, err = index.Within(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, orders)

	orders, err = index.Within(50, 50, 1)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestWithinMatchesScan(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	index := NewItemIndex()
	var items []*models.FieldItem
	for i := 0; i < 500; i++ {
		it := item(r.Float64()*20, r.Float64()*20)
		items = append(items, it)
		index.Insert(it)
	}

	for q := 0; q < 50; q++ {
		x, y, radius := r.Float64()*20, r.Float64()*20, r.Float64()*2
		var want []int
		for i, it := range items {
			if models.PlanarDistance(it.Position, models.Vec3{X: x, Y: y}) <= radius {
				want = append(want, i)
			}
		}
		got, err := index.Within(x, y, radius)
		require.NoError(t, err)
		if len(want) == 0 {
			assert.Empty(t, got, fmt.Sprintf("query %d", q))
			continue
		}
		assert.Equal(t, want, got, fmt.Sprintf("query %d", q))
	}
}

func BenchmarkWithin(b *testing.B) {
	index := NewItemIndex()
	for i := 0; i < 100000; i++ {
		index.Insert(item(rand.Float64()*1000, rand.Float64()*1000))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		index.Within(rand.Float64()*1000, rand.Float64()*1000, 0.3)
	}
}
