package tracksim

import (
	"slices"
	"time"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

// simState holds the mutable record store of one session. Callers hold the
// session lock; methods do no locking of their own.
type simState struct {
	assets map[int]*tracker.Asset
	// order keeps insertion order; nextID is a high-water mark and never
	// decreases, so deleted ids are never handed out again.
	order    []int
	nextID   int
	projects []tracker.Project
}

func newState(ds *Dataset) *simState {
	st := &simState{
		assets:   make(map[int]*tracker.Asset, len(ds.Assets)),
		nextID:   1,
		projects: slices.Clone(ds.Projects),
	}
	for _, a := range ds.Assets {
		a := cloneAsset(a)
		st.assets[a.ID] = &a
		st.order = append(st.order, a.ID)
		if a.ID >= st.nextID {
			st.nextID = a.ID + 1
		}
	}
	return st
}

func (st *simState) get(id int) (tracker.Asset, bool) {
	a, ok := st.assets[id]
	if !ok {
		return tracker.Asset{}, false
	}
	return cloneAsset(*a), true
}

func (st *simState) getByName(name string) (tracker.Asset, bool) {
	for _, id := range st.order {
		if a := st.assets[id]; a.Name == name {
			return cloneAsset(*a), true
		}
	}
	return tracker.Asset{}, false
}

func (st *simState) list() []tracker.Asset {
	out := make([]tracker.Asset, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, cloneAsset(*st.assets[id]))
	}
	return out
}

func (st *simState) insert(a tracker.Asset, now time.Time) tracker.Asset {
	a = cloneAsset(a)
	a.ID = st.nextID
	st.nextID++
	a.CreatedAt = now
	a.UpdatedAt = now
	st.assets[a.ID] = &a
	st.order = append(st.order, a.ID)
	return cloneAsset(a)
}

// replace merges the set fields of patch into the stored record. The caller
// has already validated any status id in the patch.
func (st *simState) replace(id int, patch tracker.AssetPatch, now time.Time) (tracker.Asset, bool) {
	a, ok := st.assets[id]
	if !ok {
		return tracker.Asset{}, false
	}
	if v, set := patch.Name.Get(); set {
		a.Name = v
	}
	if v, set := patch.StatusID.Get(); set {
		if status, known := tracker.StatusByID(v); known {
			a.Status = status
		}
	}
	if v, set := patch.Type.Get(); set {
		a.Type = v
	}
	if v, set := patch.IsPrivate.Get(); set {
		a.IsPrivate = v
	}
	if v, set := patch.Project.Get(); set {
		a.Project = v
	}
	if v, set := patch.Tags.Get(); set {
		a.Tags = slices.Clone(v)
	}
	if v, set := patch.Author.Get(); set {
		a.Author = v
	}
	for _, cf := range patch.CustomFields {
		mergeCustomField(a, cf)
	}
	a.UpdatedAt = now
	return cloneAsset(*a), true
}

func (st *simState) remove(id int) bool {
	if _, ok := st.assets[id]; !ok {
		return false
	}
	delete(st.assets, id)
	st.order = slices.DeleteFunc(st.order, func(v int) bool { return v == id })
	return true
}

// mergeCustomField replaces the value of an existing field in place or
// appends a new one. An incoming name wins only when non-empty.
func mergeCustomField(a *tracker.Asset, in tracker.CustomField) {
	if in.Name == "" {
		if name, ok := tracker.CustomFieldName(in.ID); ok {
			in.Name = name
		}
	}
	for i := range a.CustomFields {
		if a.CustomFields[i].ID != in.ID {
			continue
		}
		a.CustomFields[i].Value = in.Value
		if in.Name != "" {
			a.CustomFields[i].Name = in.Name
		}
		return
	}
	a.CustomFields = append(a.CustomFields, in)
}

// normalizeFieldNames fills missing display names for catalog fields.
func normalizeFieldNames(a *tracker.Asset) {
	for i := range a.CustomFields {
		cf := &a.CustomFields[i]
		if cf.Name != "" {
			continue
		}
		if name, ok := tracker.CustomFieldName(cf.ID); ok {
			cf.Name = name
		}
	}
}

func findProject(projects []tracker.Project, identifier string) (tracker.Project, bool) {
	for _, p := range projects {
		if p.Identifier == identifier {
			return p, true
		}
	}
	return tracker.Project{}, false
}

func cloneAsset(a tracker.Asset) tracker.Asset {
	if a.CustomFields != nil {
		a.CustomFields = slices.Clone(a.CustomFields)
	}
	if a.Tags != nil {
		a.Tags = slices.Clone(a.Tags)
	}
	return a
}
