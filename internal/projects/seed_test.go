package projects

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeed(t *testing.T) {
	raw := `[
		{"id": "p1", "name": "Rancho Uno", "price_per_credit": "10", "impact_quantity": 500,
		 "metadata": {"technology": "drip_irrigation"}},
		{"id": "p2", "name": "Rancho Dos", "status": "Sold", "price_per_credit": 12.5, "impact_quantity": "0"}
	]`

	projects, err := ReadSeed(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, projects, 2)

	assert.Equal(t, StatusAvailable, projects[0].Status)
	assert.Equal(t, "500", projects[0].ImpactQuantity.String())
	assert.JSONEq(t, `{"technology": "drip_irrigation"}`, string(projects[0].Metadata))
	assert.Equal(t, StatusSold, projects[1].Status)
	assert.Equal(t, "12.5", projects[1].PricePerCredit.String())
}

func TestReadSeed_Invalid(t *testing.T) {
	_, err := ReadSeed(strings.NewReader(`[{"id": "p1", "status": "Reserved", "price_per_credit": 1, "impact_quantity": 1}]`))
	assert.Error(t, err)

	_, err = ReadSeed(strings.NewReader(`[{"id": "p1", "unknown_field": true}]`))
	assert.Error(t, err)

	_, err = ReadSeed(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestLoadSeed_ShippedFile(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	path := filepath.Join(filepath.Dir(file), "..", "..", "seed", "projects.json")

	catalog := NewMemoryCatalog()
	n, err := LoadSeed(context.Background(), path, catalog)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	p, err := catalog.Fetch(context.Background(), "rancho-el-bajio")
	require.NoError(t, err)
	assert.Equal(t, 20.5235, p.Latitude)
	assert.True(t, p.IsAvailable())
}

func TestLoadSeed_MissingFile(t *testing.T) {
	_, err := LoadSeed(context.Background(), filepath.Join(t.TempDir(), "nope.json"), NewMemoryCatalog())
	assert.Error(t, err)
}
