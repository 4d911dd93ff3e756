package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	c, err := r.Lookup("patanhc")
	require.NoError(t, err)
	assert.Equal(t, KindHigh, c.Kind)
	assert.Equal(t, "/court/patanhc/bench_list", c.BenchListPath())
	assert.Equal(t, "/court/patanhc/cause_list_detail", c.CauseListPath())

	_, err = r.Lookup("atlantisdc")
	assert.Error(t, err, "unknown court is a configuration error")
}

func TestRegistry_ByKind(t *testing.T) {
	r := NewRegistry()

	high := r.ByKind(KindHigh)
	assert.NotEmpty(t, high)
	for _, c := range high {
		assert.Equal(t, KindHigh, c.Kind)
	}

	district := r.ByKind(KindDistrict)
	for _, c := range district {
		assert.Positive(t, c.DistrictID, "district courts carry a detail endpoint id")
	}
}

func TestRegistry_Select(t *testing.T) {
	r := NewRegistry()

	courts, err := r.Select([]string{"kathmandudc", "kaskidc"}, KindDistrict)
	require.NoError(t, err)
	require.Len(t, courts, 2)

	courts, err = r.Select(nil, KindHigh)
	require.NoError(t, err)
	assert.NotEmpty(t, courts)

	_, err = r.Select([]string{"nope"}, KindHigh)
	assert.Error(t, err)
}

func TestRegistry_LoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courts.yaml")
	data := `
- id: newbenchhc
  name: Brand New Bench
  kind: high
- id: kathmandudc
  name: Kathmandu District Court
  kind: district
  district_id: 99
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadOverrides(path))

	c, err := r.Lookup("newbenchhc")
	require.NoError(t, err)
	assert.Equal(t, "Brand New Bench", c.Name)

	c, err = r.Lookup("kathmandudc")
	require.NoError(t, err)
	assert.Equal(t, 99, c.DistrictID, "override replaces built-in")
	assert.Equal(t, "/weekly_dainik/pesi/case_process_detail/99", c.DetailPath())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("district")
	require.NoError(t, err)
	assert.Equal(t, KindDistrict, k)

	_, err = ParseKind("municipal")
	assert.Error(t, err)
}
