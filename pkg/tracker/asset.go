package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aarondl/opt/omit"
)

// Status is one entry of the tracker's closed status catalog. Records never
// carry ids outside StatusByID.
type Status struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var (
	StatusValid    = Status{ID: 1, Name: "valid"}
	StatusToVerify = Status{ID: 2, Name: "to verify"}
	StatusInvalid  = Status{ID: 3, Name: "invalid"}
)

// Statuses returns the status catalog in id order.
func Statuses() []Status {
	return []Status{StatusValid, StatusToVerify, StatusInvalid}
}

// StatusByID resolves an id against the status catalog.
func StatusByID(id int) (Status, bool) {
	for _, s := range Statuses() {
		if s.ID == id {
			return s, true
		}
	}
	return Status{}, false
}

// AssetType is an id and name pair from the deployment's type catalog. The
// catalog lives outside the tracker; values are carried verbatim.
type AssetType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CustomField is one entry of an asset's ordered custom-field bag.
type CustomField struct {
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}

// Field identifies a searchable asset attribute in list queries.
type Field string

const (
	FieldSerialNumber Field = "serial_number"
	FieldHostName     Field = "host_name"
	FieldProgram      Field = "program"
	FieldModel        Field = "model"
	FieldMACAddress   Field = "mac_address"
	FieldParent       Field = "parent"
	FieldType         Field = "type"

	// FieldName and FieldID address built-in attributes. The HTTP list
	// endpoint rejects them; they are honored for in-process callers only.
	FieldName Field = "name"
	FieldID   Field = "id"
)

// customFieldDefs fixes the ids and display names of the custom fields the
// tracker provisions for hardware assets.
var customFieldDefs = map[Field]CustomField{
	FieldSerialNumber: {ID: 1, Name: "Serial Number"},
	FieldHostName:     {ID: 2, Name: "Host Name"},
	FieldProgram:      {ID: 3, Name: "Program"},
	FieldModel:        {ID: 4, Name: "Model"},
	FieldMACAddress:   {ID: 5, Name: "MAC Address"},
	FieldParent:       {ID: 6, Name: "Parent"},
	FieldType:         {ID: 7, Name: "Type"},
}

// CustomField returns the catalog entry backing f with an empty value, or
// false when f is not backed by a custom field.
func (f Field) CustomField() (CustomField, bool) {
	cf, ok := customFieldDefs[f]
	return cf, ok
}

// CustomFieldName looks up the display name for a custom-field id.
func CustomFieldName(id int) (string, bool) {
	for _, cf := range customFieldDefs {
		if cf.ID == id {
			return cf.Name, true
		}
	}
	return "", false
}

type Author struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Asset is a hardware asset record. Fields absent from a dataset stay absent
// on the wire.
type Asset struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Type         AssetType     `json:"type,omitzero"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
	IsPrivate    bool          `json:"is_private"`
	Project      Project       `json:"project,omitzero"`
	Tags         []string      `json:"tags,omitempty"`
	Author       Author        `json:"author,omitzero"`
	CreatedAt    time.Time     `json:"created_at,omitzero"`
	UpdatedAt    time.Time     `json:"updated_at,omitzero"`
}

// AssetPatch is the request document for create and update calls. Unset
// fields leave the stored record untouched; custom fields merge by field id.
type AssetPatch struct {
	Name         omit.Val[string]    `json:"name,omitzero"`
	StatusID     omit.Val[int]       `json:"status_id,omitzero"`
	Type         omit.Val[AssetType] `json:"type,omitzero"`
	IsPrivate    omit.Val[bool]      `json:"is_private,omitzero"`
	Project      omit.Val[Project]   `json:"project,omitzero"`
	Tags         omit.Val[[]string]  `json:"tags,omitzero"`
	Author       omit.Val[Author]    `json:"author,omitzero"`
	CustomFields []CustomField       `json:"custom_fields,omitempty"`
}

// AssetRequest is the envelope wrapping an AssetPatch on the wire.
type AssetRequest struct {
	Asset AssetPatch `json:"asset"`
}

// AssetEnvelope wraps a single record in responses.
type AssetEnvelope struct {
	Asset Asset `json:"asset"`
}

// AssetPage is one page of a collection listing.
type AssetPage struct {
	Assets     []Asset `json:"assets"`
	TotalCount int     `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

// ListOptions maps onto the query string of the list endpoint. The zero
// value lists everything with the service's default page size.
type ListOptions struct {
	Field         Field
	Keyword       string
	ExactMatch    bool
	CaseSensitive bool
	StatusID      int
	Offset        int
	Limit         int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Field != "" {
		v.Set("field", string(o.Field))
		v.Set("keyword", o.Keyword)
	}
	if o.ExactMatch {
		v.Set("exact_match", "true")
	}
	if o.CaseSensitive {
		v.Set("case_sensitive", "true")
	}
	if o.StatusID != 0 {
		v.Set("status_id", strconv.Itoa(o.StatusID))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

type AssetService struct {
	client *Client
}

// List returns one page of assets matching opts, in insertion order.
func (s *AssetService) List(ctx context.Context, opts ListOptions) (*AssetPage, error) {
	var page AssetPage
	if err := s.client.Call(ctx, http.MethodGet, "/assets.json", opts.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *AssetService) GetByID(ctx context.Context, id int) (*Asset, error) {
	var env AssetEnvelope
	path := fmt.Sprintf("/assets/%d.json", id)
	if err := s.client.Call(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	return &env.Asset, nil
}

// Create registers a new asset under the project with the given identifier.
// The service assigns the id; any id in the patch is ignored.
func (s *AssetService) Create(ctx context.Context, project string, patch AssetPatch) (*Asset, error) {
	var env AssetEnvelope
	path := fmt.Sprintf("/projects/%s/assets.json", url.PathEscape(project))
	if err := s.client.Call(ctx, http.MethodPost, path, nil, AssetRequest{Asset: patch}, &env); err != nil {
		return nil, err
	}
	return &env.Asset, nil
}

// Update merges the set fields of patch into the stored record.
func (s *AssetService) Update(ctx context.Context, id int, patch AssetPatch) (*Asset, error) {
	var env AssetEnvelope
	path := fmt.Sprintf("/assets/%d.json", id)
	if err := s.client.Call(ctx, http.MethodPut, path, nil, AssetRequest{Asset: patch}, &env); err != nil {
		return nil, err
	}
	return &env.Asset, nil
}

func (s *AssetService) Delete(ctx context.Context, id int) error {
	path := fmt.Sprintf("/assets/%d.json", id)
	return s.client.Call(ctx, http.MethodDelete, path, nil, nil, nil)
}
