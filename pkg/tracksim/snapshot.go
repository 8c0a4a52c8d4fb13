package tracksim

import (
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

// Snapshot is a point-in-time copy of the simulator's observable state.
type Snapshot struct {
	Enabled  bool
	Session  string
	Assets   []tracker.Asset
	Projects []tracker.Project
	Requests []RequestEntry
}

// Snapshot captures the records, projects and request log of the active
// session. A disabled simulator yields the zero snapshot.
func (s *Simulator) Snapshot() Snapshot {
	sess := s.currentSession()
	if sess == nil {
		return Snapshot{}
	}
	sess.mu.RLock()
	assets := sess.state.list()
	projects := slices.Clone(sess.state.projects)
	sess.mu.RUnlock()
	return Snapshot{
		Enabled:  true,
		Session:  sess.id,
		Assets:   assets,
		Projects: projects,
		Requests: sess.log.all(),
	}
}

// snapshotTOML is the reduced shape used for scripted comparisons. It
// drops timestamps and the session id so output stays stable across runs.
type snapshotTOML struct {
	Enabled  bool              `toml:"enabled"`
	Projects []snapshotProject `toml:"project,omitempty"`
	Assets   []snapshotAsset   `toml:"asset,omitempty"`
	Requests []snapshotRequest `toml:"request,omitempty"`
}

type snapshotProject struct {
	ID         int    `toml:"id"`
	Identifier string `toml:"identifier"`
	Name       string `toml:"name,omitempty"`
}

type snapshotAsset struct {
	ID      int    `toml:"id"`
	Name    string `toml:"name,omitempty"`
	Status  string `toml:"status"`
	Project string `toml:"project,omitempty"`
	Serial  string `toml:"serial,omitempty"`
}

type snapshotRequest struct {
	Method string `toml:"method"`
	Path   string `toml:"path"`
	Status int    `toml:"status"`
}

// MarshalTOML renders the snapshot in its reduced, deterministic form.
func (s Snapshot) MarshalTOML() ([]byte, error) {
	out := snapshotTOML{Enabled: s.Enabled}
	for _, p := range s.Projects {
		out.Projects = append(out.Projects, snapshotProject{
			ID:         p.ID,
			Identifier: p.Identifier,
			Name:       p.Name,
		})
	}
	serialID := 0
	if cf, ok := tracker.FieldSerialNumber.CustomField(); ok {
		serialID = cf.ID
	}
	for _, a := range s.Assets {
		sa := snapshotAsset{
			ID:      a.ID,
			Name:    a.Name,
			Status:  a.Status.Name,
			Project: a.Project.Identifier,
		}
		for _, cf := range a.CustomFields {
			if cf.ID == serialID {
				sa.Serial = cf.Value
				break
			}
		}
		out.Assets = append(out.Assets, sa)
	}
	for _, r := range s.Requests {
		out.Requests = append(out.Requests, snapshotRequest{
			Method: r.Method,
			Path:   r.Path,
			Status: r.Status,
		})
	}
	return toml.Marshal(out)
}
