package tracksim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

var (
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrDatasetMalformed = errors.New("dataset malformed")
	ErrDuplicateID      = errors.New("duplicate asset id")
)

// Dataset is the seed state of a session: asset records plus the project
// catalog. Projects referenced by assets but not declared are derived in
// first-seen order.
type Dataset struct {
	Assets   []tracker.Asset   `json:"assets"`
	Projects []tracker.Project `json:"projects,omitempty"`
}

// LoadDataset reads and validates a JSON dataset file. The file is read
// once and never written back. Any validation failure leaves no partial
// result; all errors unwrap to ErrDatasetNotFound, ErrDatasetMalformed or
// ErrDuplicateID.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetMalformed, err)
	}
	if err := ds.normalize(time.Now().UTC()); err != nil {
		return nil, err
	}
	return &ds, nil
}

// normalize validates ids and statuses and fills defaulted fields in place.
// It is idempotent.
func (ds *Dataset) normalize(now time.Time) error {
	seen := make(map[int]struct{}, len(ds.Assets))
	for i := range ds.Assets {
		a := &ds.Assets[i]
		if a.ID <= 0 {
			return fmt.Errorf("%w: asset %q: id must be positive", ErrDatasetMalformed, a.Name)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, a.ID)
		}
		seen[a.ID] = struct{}{}

		if a.Status.ID == 0 {
			a.Status = tracker.StatusValid
		} else {
			status, ok := tracker.StatusByID(a.Status.ID)
			if !ok {
				return fmt.Errorf("%w: asset %d: unknown status id %d", ErrDatasetMalformed, a.ID, a.Status.ID)
			}
			a.Status = status
		}

		normalizeFieldNames(a)

		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}
	}
	return ds.normalizeProjects()
}

func (ds *Dataset) normalizeProjects() error {
	seen := make(map[string]struct{}, len(ds.Projects))
	for _, p := range ds.Projects {
		if p.Identifier == "" {
			return fmt.Errorf("%w: project %q: identifier is required", ErrDatasetMalformed, p.Name)
		}
		if _, dup := seen[p.Identifier]; dup {
			return fmt.Errorf("%w: duplicate project identifier %q", ErrDatasetMalformed, p.Identifier)
		}
		seen[p.Identifier] = struct{}{}
	}
	for _, a := range ds.Assets {
		id := a.Project.Identifier
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ds.Projects = append(ds.Projects, a.Project)
	}
	return nil
}

func (ds *Dataset) clone() *Dataset {
	out := &Dataset{
		Assets:   make([]tracker.Asset, len(ds.Assets)),
		Projects: slices.Clone(ds.Projects),
	}
	for i, a := range ds.Assets {
		out.Assets[i] = cloneAsset(a)
	}
	return out
}
