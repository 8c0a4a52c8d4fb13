package tracksim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

func (sess *session) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(sess.audit)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, tracker.ErrCodeNotFound, "no such resource")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, tracker.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/assets.json", sess.handleListAssets)
	r.Get("/assets/{id}.json", sess.handleGetAsset)
	r.Put("/assets/{id}.json", sess.handleUpdateAsset)
	r.Delete("/assets/{id}.json", sess.handleDeleteAsset)
	r.Post("/projects/{project}/assets.json", sess.handleCreateAsset)
	r.Get("/projects.json", sess.handleListProjects)

	return r
}

// audit wraps every route, including the 404 and 405 fallbacks. The
// response is buffered so the request can be logged, and the artificial
// latency applied, before a single byte reaches the client. Authentication
// failures short-circuit the handler but still go through the log.
func (sess *session) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newResponseRecorder()
		rec.Header().Set("X-Request-Id", uuid.NewString())

		if sess.authorized(r) {
			next.ServeHTTP(rec, r)
		} else {
			writeError(rec, http.StatusUnauthorized, tracker.ErrCodeUnauthorized, "missing or invalid api key")
		}

		sess.log.append(RequestEntry{
			Time:   time.Now().UTC(),
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Status: rec.code,
		})
		sess.delay(r.Context())
		rec.flush(w)
	})
}

func (sess *session) authorized(r *http.Request) bool {
	if sess.apiKey == "" {
		return true
	}
	if r.Header.Get(tracker.APIKeyHeader) == sess.apiKey {
		return true
	}
	return r.URL.Query().Get(tracker.APIKeyParam) == sess.apiKey
}

func (sess *session) delay(ctx context.Context) {
	d := sess.sim.Latency()
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-sess.sim.doneCh():
	}
}

func (sess *session) handleListAssets(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := Query{Keyword: params.Get("keyword")}
	if name := params.Get("field"); name != "" {
		field := tracker.Field(name)
		if _, ok := field.CustomField(); !ok {
			writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, fmt.Sprintf("unknown field %q", name))
			return
		}
		q.Field = field
	}

	var err error
	if q.CaseSensitive, err = boolParam(params.Get("case_sensitive")); err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, "invalid case_sensitive value")
		return
	}
	if q.ExactMatch, err = boolParam(params.Get("exact_match")); err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, "invalid exact_match value")
		return
	}
	if q.StatusID, err = statusParam(params.Get("status_id")); err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, err.Error())
		return
	}
	offset, err := intParam(params.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, "invalid offset value")
		return
	}
	limit, err := intParam(params.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, "invalid limit value")
		return
	}

	sess.mu.RLock()
	matches, err := sess.state.search(q)
	sess.mu.RUnlock()
	if err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, err.Error())
		return
	}

	if offset < 0 {
		offset = 0
	}
	page, total := Paginate(matches, offset, limit)
	writeJSON(w, http.StatusOK, tracker.AssetPage{
		Assets:     page,
		TotalCount: total,
		Offset:     offset,
		Limit:      pageLimit(limit),
	})
}

func (sess *session) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sess.mu.RLock()
	a, found := sess.state.get(id)
	sess.mu.RUnlock()
	if !found {
		writeError(w, http.StatusNotFound, tracker.ErrCodeNotFound, fmt.Sprintf("asset %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, tracker.AssetEnvelope{Asset: a})
}

func (sess *session) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "project")
	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	project, found := findProject(sess.state.projects, identifier)
	if !found {
		writeError(w, http.StatusNotFound, tracker.ErrCodeNotFound, fmt.Sprintf("project %q not found", identifier))
		return
	}

	status := tracker.StatusValid
	if sid, set := patch.StatusID.Get(); set {
		if status, found = tracker.StatusByID(sid); !found {
			writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, fmt.Sprintf("unknown status id %d", sid))
			return
		}
	}

	a := tracker.Asset{
		Name:         patch.Name.GetOrZero(),
		Status:       status,
		Type:         patch.Type.GetOrZero(),
		CustomFields: slices.Clone(patch.CustomFields),
		IsPrivate:    patch.IsPrivate.GetOrZero(),
		Project:      project,
		Tags:         slices.Clone(patch.Tags.GetOrZero()),
		Author:       patch.Author.GetOrZero(),
	}
	normalizeFieldNames(&a)

	created := sess.state.insert(a, time.Now().UTC())
	writeJSON(w, http.StatusCreated, tracker.AssetEnvelope{Asset: created})
}

func (sess *session) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}
	if sid, set := patch.StatusID.Get(); set {
		if _, known := tracker.StatusByID(sid); !known {
			writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, fmt.Sprintf("unknown status id %d", sid))
			return
		}
	}

	sess.mu.Lock()
	a, found := sess.state.replace(id, patch, time.Now().UTC())
	sess.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, tracker.ErrCodeNotFound, fmt.Sprintf("asset %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, tracker.AssetEnvelope{Asset: a})
}

func (sess *session) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	removed := sess.state.remove(id)
	sess.mu.Unlock()
	if !removed {
		writeError(w, http.StatusNotFound, tracker.ErrCodeNotFound, fmt.Sprintf("asset %d not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (sess *session) handleListProjects(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	offset, err := intParam(params.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, "invalid offset value")
		return
	}
	limit, err := intParam(params.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, "invalid limit value")
		return
	}

	sess.mu.RLock()
	projects := slices.Clone(sess.state.projects)
	sess.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	page, total := Paginate(projects, offset, limit)
	writeJSON(w, http.StatusOK, tracker.ProjectPage{
		Projects:   page,
		TotalCount: total,
		Offset:     offset,
		Limit:      pageLimit(limit),
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, fmt.Sprintf("invalid asset id %q", raw))
		return 0, false
	}
	return id, true
}

func decodePatch(w http.ResponseWriter, r *http.Request) (tracker.AssetPatch, bool) {
	defer r.Body.Close() //nolint:errcheck
	var req tracker.AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, tracker.ErrCodeMalformedRequest, fmt.Sprintf("invalid body: %v", err))
		return tracker.AssetPatch{}, false
	}
	return req.Asset, true
}

func boolParam(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func statusParam(raw string) (int, error) {
	if raw == "" || raw == "*" {
		return 0, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid status_id %q", raw)
	}
	return id, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, tracker.Error{Code: code, Message: message})
}
