package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(h *harness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.svc, "/api").RegisterRoutes(r.Group("/api"))
	return r
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, w.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return resp.Error.Code
}

func TestCreateJobReturnsCreatedView(t *testing.T) {
	h := newHarness(t)
	r := newTestRouter(h)

	body, ctype := multipartUpload(t, map[string]string{
		"engine_override": "engine_a",
		"auto_detect":     "false",
		"language":        "romanian",
		"folder":          "Facturi",
		"folder_id":       "7",
		"options":         `{"deskew":true}`,
	}, "scan.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/jobs", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var view map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view["status"] != "queued" || view["engine"] != "engine_a" || view["auto_detect"] != false {
		t.Fatalf("unexpected view %v", view)
	}
	if view["folder"] != "Facturi" || view["folder_id"] != float64(7) || view["language"] != "romanian" {
		t.Fatalf("unexpected folder/language fields %v", view)
	}
	if view["download_url"] != nil {
		t.Fatalf("download_url must be null before completion")
	}
	opts, _ := view["options"].(map[string]any)
	if opts["deskew"] != true {
		t.Fatalf("expected options in detail view, got %v", view["options"])
	}
	for _, key := range []string{"error", "output_filename", "output_mime_type", "text_excerpt", "summary", "created_at", "updated_at"} {
		if _, ok := view[key]; !ok {
			t.Fatalf("missing key %s", key)
		}
	}
}

func TestCreateJobValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		file   string
		code   string
	}{
		{name: "missing file", fields: map[string]string{}, file: "", code: "validation_error"},
		{name: "bad engine", fields: map[string]string{"engine_override": "abbyy"}, file: "a.pdf", code: "invalid_engine"},
		{name: "bad options", fields: map[string]string{"options": "{"}, file: "a.pdf", code: "invalid_options"},
		{name: "bad folder id", fields: map[string]string{"folder_id": "x"}, file: "a.pdf", code: "validation_error"},
		{name: "unknown folder", fields: map[string]string{"folder_id": "12"}, file: "a.pdf", code: "folder_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			r := newTestRouter(h)
			body, ctype := multipartUpload(t, tc.fields, tc.file, "data")
			req := httptest.NewRequest(http.MethodPost, "/api/ocr/jobs", body)
			req.Header.Set("Content-Type", ctype)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if code := decodeError(t, w); code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, code)
			}
			assertNoSideEffects(t, h)
		})
	}
}

func TestGetListAndDownload(t *testing.T) {
	h := newHarness(t)
	r := newTestRouter(h)
	job := h.submit(t, SubmitInput{FileName: "note.txt"})
	id := strconv.FormatInt(job.ID, 10)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ocr/jobs/"+id+"/download", nil))
	if w.Code != http.StatusNotFound || decodeError(t, w) != "output_not_ready" {
		t.Fatalf("expected 404 output_not_ready, got %d %s", w.Code, w.Body.String())
	}

	if err := h.exec.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ocr/jobs/"+id, nil))
	var view JobView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != StatusCompleted || view.DownloadURL == nil || *view.DownloadURL != "/api/ocr/jobs/"+id+"/download" {
		t.Fatalf("unexpected view %+v", view)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ocr/jobs/"+id+"/download", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "1_docling.md") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if w.Header().Get("Content-Type") != "text/markdown" || w.Body.String() != "text extras din document" {
		t.Fatalf("unexpected download %q %q", w.Header().Get("Content-Type"), w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ocr/jobs?status=completed", nil))
	var list []JobView
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Options != nil {
		t.Fatalf("unexpected list %+v", list)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ocr/jobs?status=paused", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
}

func TestGetMissingAndInvalidID(t *testing.T) {
	r := newTestRouter(newHarness(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ocr/jobs/42", nil))
	if w.Code != http.StatusNotFound || decodeError(t, w) != "not_found" {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ocr/jobs/abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPatchAndDeleteJob(t *testing.T) {
	h := newHarness(t)
	r := newTestRouter(h)
	folderID := int64(7)
	job := h.submit(t, SubmitInput{Folder: "Acte", FolderID: &folderID})
	path := "/api/ocr/jobs/" + strconv.FormatInt(job.ID, 10)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"folder_id":null}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view JobView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.FolderID != nil || view.Folder == nil || *view.Folder != "Acte" {
		t.Fatalf("expected folder id cleared and tag kept, got %+v", view)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, path, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, path, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestEngineSettingRoutes(t *testing.T) {
	r := newTestRouter(newHarness(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings/ocr-engine", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"engine":"engine_b"`) {
		t.Fatalf("unexpected default engine response %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/settings/ocr-engine", strings.NewReader(`{"engine":"engine_a"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"engine":"engine_a"`) {
		t.Fatalf("unexpected update response %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/settings/ocr-engine", strings.NewReader(`{"engine":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown engine, got %d", w.Code)
	}
}
