package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iteam-company/blockpress/internal/converter"
	"github.com/iteam-company/blockpress/internal/docservice"
	"github.com/iteam-company/blockpress/internal/media"
	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/storage"
	"github.com/iteam-company/blockpress/internal/testutil"
)

const article = "---\ntitle: Hello World\ncategory: news\npreviewDescription: intro\n---\n# Hi\n\nSome **bold** text.\n"

// testEnv sets up a service, media directory and router. An empty authToken
// means auth is disabled.
func testEnv(t *testing.T, authToken string) (*docservice.Service, http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) (*docservice.Service, http.Handler, string) {
	t.Helper()
	mediaDir := t.TempDir()
	fs, err := storage.NewFS(mediaDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	resolver := media.NewResolver(fs)
	svc, _, _ := testutil.TestServiceWith(t, []converter.Option{converter.WithImageResolver(resolver)})

	router := NewRouter(svc, resolver, authToken != "", authToken, sseHandler)
	return svc, router, mediaDir
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 3))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestConvert(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/convert", ConvertRequest{Source: article})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc struct {
		Metadata models.DocumentMetadata `json:"metadata"`
		Blocks   []map[string]any        `json:"blocks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.Metadata.Title != "Hello World" {
		t.Errorf("title = %q", doc.Metadata.Title)
	}
	if len(doc.Blocks) != 2 || doc.Blocks[0]["type"] != "heading" || doc.Blocks[0]["level"] != float64(1) {
		t.Errorf("blocks = %v", doc.Blocks)
	}
}

func TestConvert_ArticleEnvelope(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/convert?envelope=article", ConvertRequest{Source: article})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var env struct {
		Data struct {
			Title   string           `json:"title"`
			Article []map[string]any `json:"Article"`
		} `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	if env.Data.Title != "Hello World" || len(env.Data.Article) != 2 {
		t.Errorf("envelope = %+v", env)
	}
}

func TestConvert_RawMarkdownBody(t *testing.T) {
	_, router, _ := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(article))
	req.Header.Set("Content-Type", "text/markdown; charset=utf-8")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestConvert_ImagePayload(t *testing.T) {
	_, router, mediaDir := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/convert", ConvertRequest{
		Source: article + "\n![cover](cover.png)\n",
		Images: map[string]string{"cover": base64.StdEncoding.EncodeToString(pngData(t))},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc struct {
		Blocks []struct {
			Type  string             `json:"type"`
			Image models.ImageRecord `json:"image"`
		} `json:"blocks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	last := doc.Blocks[len(doc.Blocks)-1]
	if last.Type != "image" || last.Image.Width != 2 || last.Image.Height != 3 {
		t.Fatalf("image block = %+v", last)
	}
	name := strings.TrimPrefix(last.Image.URL, "/attachments/")
	if _, err := os.Stat(filepath.Join(mediaDir, name)); err != nil {
		t.Errorf("image not stored: %v", err)
	}

	// The stored image is served back.
	req := httptest.NewRequest(http.MethodGet, last.Image.URL, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("serve = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestConvert_Errors(t *testing.T) {
	_, router, _ := testEnv(t, "")

	cases := []struct {
		name string
		body any
		want int
	}{
		{"empty source", ConvertRequest{}, http.StatusBadRequest},
		{"bad format", ConvertRequest{Source: "x", Format: "rtf"}, http.StatusBadRequest},
		{"missing metadata", ConvertRequest{Source: "# just a heading"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/convert", tc.body)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tc.want, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
}

func TestConvertStoreGetDelete(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/convert?store=true", ConvertRequest{Source: article, Slug: "hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("store status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/convert?store=true", ConvertRequest{Source: article, Slug: "hello"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate store = %d, want 409", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/documents/hello", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var stored models.StoredDocument
	_ = json.Unmarshal(w.Body.Bytes(), &stored)
	if stored.Slug != "hello" || stored.BlockCount != 2 {
		t.Errorf("stored = %+v", stored)
	}

	w = doJSON(t, router, http.MethodGet, "/documents", nil)
	var list DocumentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || len(list.Documents) != 1 || list.Documents[0].Title != "Hello World" {
		t.Errorf("list = %+v", list)
	}

	w = doJSON(t, router, http.MethodDelete, "/documents/hello", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/documents/hello", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/documents/hello", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestResolveInline(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/inline", InlineRequest{Text: "a **b** [c](http://x)"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Children []map[string]any `json:"children"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Children) != 4 {
		t.Fatalf("children = %v", resp.Children)
	}
	if resp.Children[1]["bold"] != true || resp.Children[3]["type"] != "link" {
		t.Errorf("children = %v", resp.Children)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router, _ := testEnv(t, "")
	doJSON(t, router, http.MethodPost, "/convert?store=true", ConvertRequest{Source: article + "\nsearchable words here\n"})

	w := doJSON(t, router, http.MethodGet, "/search?q=searchable", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("results = %+v", resp.Results)
	}

	w = doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingOrWrongToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret")
	for _, header := range []string{"", "Bearer wrong", "secret"} {
		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q = %d, want 401", header, w.Code)
		}
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router, _ := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, "secret", sseStub())
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForStreams(t *testing.T) {
	_, router, _ := testEnv(t, "tok")
	req := httptest.NewRequest(http.MethodGet, "/documents?access_token=tok", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token on JSON route = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

// Attachment tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeAttachment(t *testing.T) {
	_, router, mediaDir := testEnv(t, "")

	w := uploadFile(t, router, "photo.png", pngData(t))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var rec models.ImageRecord
	_ = json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.Name != "photo.png" || rec.Mime != "image/png" {
		t.Errorf("record = %+v", rec)
	}
	name := strings.TrimPrefix(rec.URL, "/attachments/")
	if _, err := os.Stat(filepath.Join(mediaDir, name)); err != nil {
		t.Fatalf("file not on disk: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, rec.URL, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngData(t)) {
		t.Errorf("serve = %d", w.Code)
	}
}

func TestUploadAttachment_Rejected(t *testing.T) {
	_, router, _ := testEnv(t, "")
	w := uploadFile(t, router, "fake.png", []byte("fake-png-data"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("fake png = %d, want 422", w.Code)
	}
	w = uploadFile(t, router, "../escape.txt", []byte("bad"))
	if w.Code == http.StatusCreated {
		t.Error("non-image upload should be rejected")
	}
}

func TestServeAttachment_NotFoundAndTraversal(t *testing.T) {
	_, router, _ := testEnv(t, "secret")
	for _, name := range []string{"nope.png", "..%2Fsecret.md", "../../etc/passwd"} {
		req := httptest.NewRequest(http.MethodGet, "/attachments/"+name, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusOK || w.Code == http.StatusUnauthorized {
			t.Errorf("%q = %d", name, w.Code)
		}
	}
}

func TestUploadAttachment_AuthProtected(t *testing.T) {
	_, router, _ := testEnv(t, "secret")
	w := uploadFile(t, router, "x.png", pngData(t))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadAttachment_MissingFileField(t *testing.T) {
	_, router, _ := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
