package folders

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/api"))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFolderRoutesLifecycle(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w := doJSON(r, http.MethodPost, "/api/folders", `{"name":"Contracte","description":"2024"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created FolderView
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Color != "green" || created.DocumentCount != 0 {
		t.Fatalf("unexpected view %+v", created)
	}

	f.document(t, "Nota", "1_a_generated.docx", "x", created.ID)

	w = doJSON(r, http.MethodGet, "/api/folders", "")
	var listed []FolderView
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].DocumentCount != 1 {
		t.Fatalf("unexpected list %+v", listed)
	}

	w = doJSON(r, http.MethodPatch, "/api/folders/"+itoa(created.ID), `{"color":"red"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"color":"red"`) {
		t.Fatalf("patch: got %d %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/folders/"+itoa(created.ID)+"/download", "")
	if w.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "Contracte.zip") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip body")
	}

	if w = doJSON(r, http.MethodDelete, "/api/folders/"+itoa(created.ID), ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if w = doJSON(r, http.MethodGet, "/api/folders/"+itoa(created.ID), ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestFolderRoutesErrors(t *testing.T) {
	r := newTestRouter(newFixture(t))

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/folders", `{"name":""}`, http.StatusBadRequest},
		{http.MethodPost, "/api/folders", `{`, http.StatusBadRequest},
		{http.MethodGet, "/api/folders/abc", "", http.StatusBadRequest},
		{http.MethodPatch, "/api/folders/4", `{"name":"x"}`, http.StatusNotFound},
		{http.MethodDelete, "/api/folders/4", "", http.StatusNotFound},
		{http.MethodGet, "/api/folders/4/download", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		if w := doJSON(r, tc.method, tc.path, tc.body); w.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, w.Code)
		}
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
