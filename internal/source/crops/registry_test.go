package crops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/climate-alerts/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sampleYAML = `crops:
  - id: c1
    name: Papa Norte
    type: papa
    location: Acobamba
    planting_date: 2025-06-01
  - id: c2
    name: Quinua Alta
    type: quinua
    location: Lircay
`

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "none.yaml"), nil)
	require.NoError(t, err)

	crops, err := r.Crops(context.Background())
	require.NoError(t, err)
	assert.Empty(t, crops)
}

func TestOpen_ParsesCrops(t *testing.T) {
	r, err := Open(writeRegistry(t, sampleYAML), nil)
	require.NoError(t, err)

	crops, err := r.Crops(context.Background())
	require.NoError(t, err)
	require.Len(t, crops, 2)

	assert.Equal(t, "Papa Norte", crops[0].Name)
	assert.Equal(t, model.CropTypePotato, crops[0].Type)
	assert.True(t, crops[0].PlantingDate.Equal(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, crops[1].PlantingDate.IsZero())

	c, ok := r.Get("c2")
	require.True(t, ok)
	assert.Equal(t, "Lircay", c.Location)
}

func TestOpen_RejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"malformed yaml": "crops: [",
		"missing name":   "crops:\n  - id: c1\n    type: papa\n",
		"duplicate id":   "crops:\n  - {id: c1, name: a, type: papa}\n  - {id: c1, name: b, type: maiz}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Open(writeRegistry(t, body), nil)
			assert.Error(t, err)
		})
	}
}

func TestAdd_AssignsIDAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crops.yaml")
	r, err := Open(path, nil)
	require.NoError(t, err)

	planted := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	added, err := r.Add(model.Crop{Name: "Papa Sur", Type: "papa", Location: "Tayacaja", PlantingDate: planted})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	_, err = r.Add(added)
	assert.Error(t, err, "duplicate id")

	_, err = r.Add(model.Crop{Name: "sin tipo"})
	assert.Error(t, err, "type is required")

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	got, ok := reopened.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, "Papa Sur", got.Name)
	assert.True(t, got.PlantingDate.Equal(planted))
}

func TestRemove(t *testing.T) {
	path := writeRegistry(t, sampleYAML)
	r, err := Open(path, nil)
	require.NoError(t, err)

	ok, err := r.Remove("c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Remove("c1")
	require.NoError(t, err)
	assert.False(t, ok)

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Stats().Total)
}

func TestStats(t *testing.T) {
	r, err := Open(writeRegistry(t, sampleYAML), nil)
	require.NoError(t, err)

	s := r.Stats()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, map[string]int{"papa": 1, "quinua": 1}, s.ByType)
	assert.Equal(t, []string{"papa", "quinua"}, s.Types())
}

func TestCrops_ReturnsCopy(t *testing.T) {
	r, err := Open(writeRegistry(t, sampleYAML), nil)
	require.NoError(t, err)

	crops, _ := r.Crops(context.Background())
	crops[0].Name = "changed"

	again, _ := r.Crops(context.Background())
	assert.Equal(t, "Papa Norte", again[0].Name)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeRegistry(t, sampleYAML)
	r, err := Open(path, nil)
	require.NoError(t, err)
	assert.Nil(t, r.Changes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx, 40*time.Millisecond))
	defer r.Stop()

	updated := sampleYAML + "  - id: c3\n    name: Maiz Bajo\n    type: maiz\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case <-r.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file change")
	}
	assert.Equal(t, 3, r.Stats().Total)
}

func TestWatch_KeepsPreviousListOnBadEdit(t *testing.T) {
	path := writeRegistry(t, sampleYAML)
	r, err := Open(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx, 40*time.Millisecond))
	defer r.Stop()

	require.NoError(t, os.WriteFile(path, []byte("crops: ["), 0o644))
	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, 2, r.Stats().Total)
}

func TestWatch_StopIsIdempotent(t *testing.T) {
	r, err := Open(writeRegistry(t, sampleYAML), nil)
	require.NoError(t, err)

	require.NoError(t, r.Start(context.Background(), 0))
	require.NoError(t, r.Start(context.Background(), 0))
	r.Stop()
	r.Stop()
}
