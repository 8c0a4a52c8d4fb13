package tracksim

import (
	"errors"
	"testing"

	"github.com/aarondl/opt/omit"
	"gotest.tools/v3/assert"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

func testDataset() *Dataset {
	return &Dataset{
		Assets: []tracker.Asset{
			{
				ID:           1,
				Name:         "atlas-001",
				Status:       tracker.Status{ID: 1},
				Project:      tracker.Project{ID: 1, Identifier: "lab", Name: "Research Lab"},
				CustomFields: []tracker.CustomField{{ID: 1, Value: "SN-1001"}},
			},
			{
				ID:      2,
				Name:    "atlas-002",
				Status:  tracker.Status{ID: 2},
				Project: tracker.Project{ID: 1, Identifier: "lab", Name: "Research Lab"},
			},
			{ID: 5, Name: "borealis-001", Status: tracker.Status{ID: 1}},
		},
	}
}

func TestSimulatorDisabled(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)
	assert.Assert(t, !sim.Enabled())

	_, err = sim.GetByID(1)
	assert.Assert(t, errors.Is(err, ErrDisabled))
	_, err = sim.Insert(tracker.Asset{Name: "x"})
	assert.Assert(t, errors.Is(err, ErrDisabled))
	_, err = sim.Search(Query{})
	assert.Assert(t, errors.Is(err, ErrDisabled))
	assert.Assert(t, sim.Requests() == nil)

	count := 0
	for range sim.Assets() {
		count++
	}
	assert.Equal(t, count, 0)
}

func TestSimulatorRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.Error(t, err, "config is required")
}

func TestSimulatorLifecycle(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)
	assert.NilError(t, sim.EnableDataset(testDataset()))
	assert.Assert(t, sim.Enabled())

	a, err := sim.GetByID(5)
	assert.NilError(t, err)
	assert.Equal(t, a.Name, "borealis-001")
	assert.Equal(t, a.Status, tracker.StatusValid)
	assert.Assert(t, !a.CreatedAt.IsZero())

	byName, err := sim.GetByName("atlas-002")
	assert.NilError(t, err)
	assert.Equal(t, byName.ID, 2)
	_, err = sim.GetByName("absent")
	assert.Assert(t, errors.Is(err, tracker.ErrNotFound))

	created, err := sim.Insert(tracker.Asset{Name: "cascadia-001"})
	assert.NilError(t, err)
	assert.Equal(t, created.ID, 6)
	assert.Equal(t, created.Status, tracker.StatusValid)

	names := []string{}
	for a := range sim.Assets() {
		names = append(names, a.Name)
	}
	assert.DeepEqual(t, names, []string{"atlas-001", "atlas-002", "borealis-001", "cascadia-001"})

	sim.Disable()
	assert.Assert(t, !sim.Enabled())
	_, err = sim.GetByID(1)
	assert.Assert(t, errors.Is(err, ErrDisabled))

	// Re-enabling rebuilds from the dataset, dropping the earlier insert
	// and restarting id assignment from the dataset's high-water mark.
	assert.NilError(t, sim.EnableDataset(testDataset()))
	_, err = sim.GetByID(6)
	assert.Assert(t, errors.Is(err, tracker.ErrNotFound))
	next, err := sim.Insert(tracker.Asset{Name: "cascadia-002"})
	assert.NilError(t, err)
	assert.Equal(t, next.ID, 6)
}

func TestSimulatorEnableFailureKeepsSession(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)
	assert.NilError(t, sim.EnableDataset(testDataset()))

	bad := &Dataset{Assets: []tracker.Asset{{ID: 1}, {ID: 1}}}
	err = sim.EnableDataset(bad)
	assert.Assert(t, errors.Is(err, ErrDuplicateID), "got %v", err)

	assert.Assert(t, sim.Enabled())
	_, err = sim.GetByID(1)
	assert.NilError(t, err)
}

func TestSimulatorLeavesCallerDatasetUntouched(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)

	ds := testDataset()
	assert.NilError(t, sim.EnableDataset(ds))

	assert.Equal(t, ds.Assets[0].CustomFields[0].Name, "")
	assert.Equal(t, ds.Assets[0].Status.Name, "")
	assert.Assert(t, ds.Assets[0].CreatedAt.IsZero())
	assert.Equal(t, len(ds.Projects), 0)
}

func TestSimulatorInsertValidatesStatus(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)
	assert.NilError(t, sim.EnableDataset(testDataset()))

	_, err = sim.Insert(tracker.Asset{Name: "x", Status: tracker.Status{ID: 9}})
	assert.ErrorContains(t, err, "unknown status id 9")
}

func TestSimulatorReplace(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)
	assert.NilError(t, sim.EnableDataset(testDataset()))

	_, err = sim.Replace(99, tracker.AssetPatch{})
	assert.Assert(t, errors.Is(err, tracker.ErrNotFound))

	_, err = sim.Replace(1, tracker.AssetPatch{StatusID: omit.From(9)})
	assert.ErrorContains(t, err, "unknown status id 9")

	got, err := sim.Replace(1, tracker.AssetPatch{StatusID: omit.From(3)})
	assert.NilError(t, err)
	assert.Equal(t, got.Status, tracker.StatusInvalid)
}

func TestSimulatorSearchInProcessFields(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)
	assert.NilError(t, sim.EnableDataset(testDataset()))

	got, err := sim.Search(Query{Field: tracker.FieldName, Keyword: "atlas"})
	assert.NilError(t, err)
	assert.Equal(t, len(got), 2)

	got, err = sim.Search(Query{Field: tracker.FieldID, Keyword: "5", ExactMatch: true})
	assert.NilError(t, err)
	assert.Equal(t, len(got), 1)
	assert.Equal(t, got[0].Name, "borealis-001")
}

func TestSimulatorProjectsDerived(t *testing.T) {
	t.Parallel()

	sim, err := New(&Config{})
	assert.NilError(t, err)
	assert.NilError(t, sim.EnableDataset(testDataset()))

	projects, err := sim.Projects()
	assert.NilError(t, err)
	assert.Equal(t, len(projects), 1)
	assert.Equal(t, projects[0].Identifier, "lab")
}
