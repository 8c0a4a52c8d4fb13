package tracksim

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

func queryFixture() *simState {
	return newState(&Dataset{
		Assets: []tracker.Asset{
			{ID: 1, Name: "atlas-001", Status: tracker.StatusValid, CustomFields: []tracker.CustomField{
				{ID: 1, Value: "SN-1001"},
				{ID: 2, Value: "atlas-001.lab.example.org"},
				{ID: 3, Value: "atlas"},
			}},
			{ID: 2, Name: "atlas-002", Status: tracker.StatusToVerify, CustomFields: []tracker.CustomField{
				{ID: 1, Value: "SN-1002"},
				{ID: 3, Value: "atlas"},
			}},
			{ID: 3, Name: "borealis-001", Status: tracker.StatusValid, CustomFields: []tracker.CustomField{
				{ID: 1, Value: "SN-2001"},
				{ID: 3, Value: "borealis"},
			}},
			{ID: 4, Name: "orphan-001", Status: tracker.StatusInvalid},
		},
	})
}

func TestSearch(t *testing.T) {
	t.Parallel()

	st := queryFixture()

	for _, tc := range []struct {
		name string
		q    Query
		want []int
	}{
		{"substring is the default", Query{Field: tracker.FieldSerialNumber, Keyword: "sn-100"}, []int{1, 2}},
		{"case sensitive opt-in", Query{Field: tracker.FieldSerialNumber, Keyword: "sn-100", CaseSensitive: true}, nil},
		{"exact match", Query{Field: tracker.FieldProgram, Keyword: "atlas", ExactMatch: true}, []int{1, 2}},
		{"exact match rejects prefixes", Query{Field: tracker.FieldProgram, Keyword: "atl", ExactMatch: true}, nil},
		{"missing field excludes the record", Query{Field: tracker.FieldProgram, Keyword: "orphan"}, nil},
		{"empty keyword matches any value", Query{Field: tracker.FieldProgram}, []int{1, 2, 3}},
		{"status filter composes", Query{Field: tracker.FieldSerialNumber, Keyword: "sn", StatusID: 1}, []int{1, 3}},
		{"status alone", Query{StatusID: 3}, []int{4}},
		{"zero query matches all", Query{}, []int{1, 2, 3, 4}},
		{"name is searchable in-process", Query{Field: tracker.FieldName, Keyword: "borealis"}, []int{3}},
		{"id is searchable in-process", Query{Field: tracker.FieldID, Keyword: "4", ExactMatch: true}, []int{4}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := st.search(tc.q)
			assert.NilError(t, err)
			var ids []int
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			assert.DeepEqual(t, ids, tc.want)
		})
	}
}

func TestSearchUnknownField(t *testing.T) {
	t.Parallel()

	st := queryFixture()
	_, err := st.search(Query{Field: "bogus", Keyword: "x"})
	assert.ErrorContains(t, err, `unknown search field "bogus"`)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	items := make([]int, 7)
	for i := range items {
		items[i] = i
	}

	for _, tc := range []struct {
		name      string
		items     []int
		offset    int
		limit     int
		want      []int
		wantTotal int
	}{
		{"defaults", items, 0, 0, []int{0, 1, 2, 3, 4, 5, 6}, 7},
		{"window", items, 2, 3, []int{2, 3, 4}, 7},
		{"offset past the end", items, 99, 10, []int{}, 7},
		{"negative offset clamps", items, -3, 2, []int{0, 1}, 7},
		{"limit above the cap", items, 0, MaxPageSize + 50, []int{0, 1, 2, 3, 4, 5, 6}, 7},
		{"empty input", nil, 0, 0, []int{}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			page, total := Paginate(tc.items, tc.offset, tc.limit)
			assert.Equal(t, total, tc.wantTotal)
			if diff := cmp.Diff(tc.want, page); diff != "" {
				t.Errorf("page mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPageLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pageLimit(0), DefaultPageSize)
	assert.Equal(t, pageLimit(-2), DefaultPageSize)
	assert.Equal(t, pageLimit(40), 40)
	assert.Equal(t, pageLimit(1000), MaxPageSize)
}
