package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartyoni/checkdoc/internal/docservice"
	"github.com/smartyoni/checkdoc/internal/models"
	"github.com/smartyoni/checkdoc/internal/testutil"
)

// testEnv wires a service over fresh backends and a router without auth.
func testEnv(t *testing.T) (*docservice.Service, http.Handler) {
	t.Helper()
	return testEnvAuth(t, false, "")
}

func testEnvAuth(t *testing.T, authEnabled bool, token string) (*docservice.Service, http.Handler) {
	t.Helper()
	store, _, _ := testutil.TestStore(t)
	svc := docservice.NewService(store, testutil.Logger(), nil)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc, NewRouter(svc, authEnabled, token, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetState(t *testing.T) {
	_, router := testEnv(t)

	w := doJSON(t, router, http.MethodGet, "/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var st docservice.State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Mode != docservice.ModeEditor {
		t.Errorf("mode = %q", st.Mode)
	}
	if st.Documents == nil || st.Templates == nil {
		t.Error("collections should encode as arrays")
	}
}

func TestCreateDocument(t *testing.T) {
	_, router := testEnv(t)

	w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"kind": "contract"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc models.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Kind != models.CategoryContract || doc.ID == "" {
		t.Errorf("doc = %+v", doc)
	}

	// The new document shows up in the listing.
	w = doJSON(t, router, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var listing struct {
		Documents []models.Document `json:"documents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Documents) != 1 || listing.Documents[0].ID != doc.ID {
		t.Errorf("listing = %+v", listing.Documents)
	}
}

func TestCreateDocument_UnknownKind(t *testing.T) {
	_, router := testEnv(t)
	w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"kind": "memo"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSave_AndGetDocument(t *testing.T) {
	_, router := testEnv(t)

	doc := models.Document{ID: "d1", Title: "Groceries", Checklist: []models.ChecklistItem{{ID: "i1", Text: "milk"}}}
	w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: doc})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/documents/d1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got models.Document
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Groceries" || len(got.Checklist) != 1 {
		t.Errorf("got = %+v", got)
	}

	w = doJSON(t, router, http.MethodGet, "/documents/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSave_CategoryConflictReturns409(t *testing.T) {
	_, router := testEnv(t)

	first := models.Document{ID: "t1", Title: "Old", IsTemplate: true, TemplateCategory: models.CategoryTask}
	if w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: first}); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	second := models.Document{ID: "t2", Title: "New", IsTemplate: true, TemplateCategory: models.CategoryTask}
	w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: second})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	// Same save with confirmation succeeds.
	w = doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: second, ConfirmReplace: true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestFavoriteEndpoints(t *testing.T) {
	svc, router := testEnv(t)

	if w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: models.Document{ID: "d1", Title: "Doc"}}); w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/documents/d1/favorite", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.Snapshot().FavoriteID != "d1" {
		t.Errorf("favorite = %q", svc.Snapshot().FavoriteID)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/ghost/favorite", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/favorite", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.Snapshot().FavoriteID != "" {
		t.Errorf("favorite = %q, want cleared", svc.Snapshot().FavoriteID)
	}
}

func TestPreviewAndEditTemplate(t *testing.T) {
	_, router := testEnv(t)

	tpl := models.Document{ID: "t1", Title: "Checklist", IsTemplate: true, TemplateCategory: models.CategoryTask}
	if w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: tpl}); w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/templates/t1/preview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d", w.Code)
	}
	var preview models.Document
	if err := json.Unmarshal(w.Body.Bytes(), &preview); err != nil {
		t.Fatal(err)
	}
	if preview.ID == "t1" || preview.IsTemplate {
		t.Errorf("preview = %+v", preview)
	}

	w = doJSON(t, router, http.MethodPost, "/templates/t1/edit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d", w.Code)
	}
	var original models.Document
	if err := json.Unmarshal(w.Body.Bytes(), &original); err != nil {
		t.Fatal(err)
	}
	if original.ID != "t1" || !original.IsTemplate {
		t.Errorf("original = %+v", original)
	}

	w = doJSON(t, router, http.MethodPost, "/templates/missing/preview", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteFlow(t *testing.T) {
	svc, router := testEnv(t)

	if w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: models.Document{ID: "d1", Title: "Doc"}}); w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/deletions", DeleteRequest{Type: "document", ID: "d1"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("request status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/deletions", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d", w.Code)
	}
	if len(svc.Documents()) != 1 {
		t.Fatal("cancel should leave the document")
	}

	doJSON(t, router, http.MethodPost, "/deletions", DeleteRequest{Type: "document", ID: "d1"})
	w = doJSON(t, router, http.MethodPost, "/deletions/execute", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("execute status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(svc.Documents()) != 0 {
		t.Errorf("documents = %+v, want none", svc.Documents())
	}

	// Execute with nothing pending.
	w = doJSON(t, router, http.MethodPost, "/deletions/execute", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestReorderEndpoint(t *testing.T) {
	svc, router := testEnv(t)

	for _, id := range []string{"a", "b"} {
		if w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: models.Document{ID: id, Title: id}}); w.Code != http.StatusOK {
			t.Fatalf("save status = %d", w.Code)
		}
	}

	// Saves prepend: current order is b, a.
	w := doJSON(t, router, http.MethodPost, "/reorder", ReorderRequest{Partition: "task", IDs: []string{"a", "b"}})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	docs := svc.Documents()
	if docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("order = %+v", docs)
	}

	w = doJSON(t, router, http.MethodPost, "/reorder", ReorderRequest{Partition: "task", IDs: []string{"a"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestExportRestore(t *testing.T) {
	_, router := testEnv(t)

	if w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: models.Document{ID: "d1", Title: "Doc"}}); w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	var b models.Backup
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if b.Version != models.BackupVersion || len(b.Documents) != 1 {
		t.Errorf("backup = %+v", b)
	}

	// Feed the export straight back into restore.
	req := httptest.NewRequest(http.MethodPost, "/restore", bytes.NewReader(w.Body.Bytes()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp RestoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRestore_InvalidBlob(t *testing.T) {
	_, router := testEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/restore", bytes.NewReader([]byte(`{"documents":[]}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAutosaveEndpoint(t *testing.T) {
	svc, router := testEnv(t)

	if w := doJSON(t, router, http.MethodPost, "/save", SaveRequest{Document: models.Document{ID: "d1", Title: "Doc"}}); w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/documents/d1/select", nil); w.Code != http.StatusOK {
		t.Fatalf("select status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/autosave", SaveRequest{Document: models.Document{ID: "d1", Title: "Doc", Content: "typing"}})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	// The write is deferred; the document is unchanged right now.
	got, err := svc.Document("d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "" {
		t.Errorf("content = %q, want deferred write", got.Content)
	}
}

func TestAuth_TokenMode(t *testing.T) {
	_, router := testEnvAuth(t, true, "sekrit")

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", w.Code)
	}
}
