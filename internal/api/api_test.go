package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arjunkorath02/DigiData/internal/config"
	"github.com/arjunkorath02/DigiData/internal/drive"
	"github.com/arjunkorath02/DigiData/internal/events"
	"github.com/arjunkorath02/DigiData/internal/identity"
	"github.com/arjunkorath02/DigiData/internal/storage/local"
)

type testEnv struct {
	server  *Server
	handler http.Handler
	store   *drive.Store
	users   *identity.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, err := local.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		MaxUploadSize:       8 << 20,
		DefaultStorageLimit: 1 << 30,
		LockTimeout:         500 * time.Millisecond,
	}
	store := drive.NewStore(drive.Config{
		LockTimeout:       cfg.LockTimeout,
		DefaultQuotaBytes: cfg.DefaultStorageLimit,
	})
	users := identity.New(nil, "test-secret", time.Hour, cfg.DefaultStorageLimit)

	srv := NewServer(cfg, store, nil, backend, users, events.NewBroadcaster())
	return &testEnv{
		server:  srv,
		handler: srv.Handler(),
		store:   store,
		users:   users,
	}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := e.users.IssueToken(&identity.User{ID: userID, Email: userID + "@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, token, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, token, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(data)
	}
	return e.do(t, token, method, path, body, "application/json")
}

func decodeNode(t *testing.T, rec *httptest.ResponseRecorder) *drive.Node {
	t.Helper()
	var n drive.Node
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode node: %v (body %s)", err, rec.Body.String())
	}
	return &n
}

func (e *testEnv) upload(t *testing.T, token, folderID, name, content string) *drive.Node {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folderID != "" {
		mw.WriteField("folder_id", folderID)
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	rec := e.do(t, token, "POST", "/api/v1/files/upload", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload %s: status %d: %s", name, rec.Code, rec.Body.String())
	}
	return decodeNode(t, rec)
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "", "GET", "/api/v1/files", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Health stays public
	rec = e.do(t, "", "GET", "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestCreateFolderAndListDrive(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")

	rec := e.doJSON(t, alice, "POST", "/api/v1/folders",
		map[string]string{"name": "Projects"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder: %d: %s", rec.Code, rec.Body.String())
	}
	folder := decodeNode(t, rec)

	e.upload(t, alice, folder.ID, "notes.txt", "hello")

	rec = e.do(t, alice, "GET", "/api/v1/files?folder_id="+folder.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Items       []drive.Node `json:"items"`
		Breadcrumbs []drive.Node `json:"breadcrumbs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "notes.txt" {
		t.Errorf("items = %+v", resp.Items)
	}
	if len(resp.Breadcrumbs) != 2 || resp.Breadcrumbs[0].Name != drive.RootName {
		t.Errorf("breadcrumbs = %+v", resp.Breadcrumbs)
	}
}

func TestDuplicateFolderNameConflicts(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")

	body := map[string]string{"name": "Docs"}
	if rec := e.doJSON(t, alice, "POST", "/api/v1/folders", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create: %d", rec.Code)
	}
	rec := e.doJSON(t, alice, "POST", "/api/v1/folders", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create: %d, want 409", rec.Code)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")

	content := "the quick brown fox"
	node := e.upload(t, alice, "", "fox.txt", content)

	rec := e.do(t, alice, "GET", "/api/v1/files/"+node.ID+"/download", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download: %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != content {
		t.Errorf("downloaded %q, want %q", rec.Body.String(), content)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "fox.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestDownloadRangeRequest(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	node := e.upload(t, alice, "", "digits.txt", "0123456789")

	req := httptest.NewRequest("GET", "/api/v1/files/"+node.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+alice)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "2345")
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestQuotaExceededMapsTo413(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	e.store.SetQuotaLimit("alice", 5)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "big.bin")
	fw.Write([]byte("0123456789"))
	mw.Close()

	rec := e.do(t, alice, "POST", "/api/v1/files/upload", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rec.Code, rec.Body.String())
	}
}

func TestTrashRestorePurgeFlow(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	node := e.upload(t, alice, "", "doc.txt", "contents")

	// Restore before trash is invalid
	if rec := e.doJSON(t, alice, "POST", "/api/v1/files/"+node.ID+"/restore", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("restore live: %d, want 400", rec.Code)
	}

	if rec := e.doJSON(t, alice, "POST", "/api/v1/files/"+node.ID+"/trash", nil); rec.Code != http.StatusOK {
		t.Fatalf("trash: %d", rec.Code)
	}

	rec := e.do(t, alice, "GET", "/api/v1/files/trash", nil, "")
	var trashResp struct {
		Items []drive.Node `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &trashResp)
	if len(trashResp.Items) != 1 {
		t.Fatalf("trash view = %+v", trashResp.Items)
	}

	if rec := e.doJSON(t, alice, "POST", "/api/v1/files/"+node.ID+"/restore", nil); rec.Code != http.StatusOK {
		t.Fatalf("restore: %d", rec.Code)
	}

	// Purge requires trash first
	if rec := e.do(t, alice, "DELETE", "/api/v1/files/"+node.ID, nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("purge live: %d, want 400", rec.Code)
	}
	e.doJSON(t, alice, "POST", "/api/v1/files/"+node.ID+"/trash", nil)
	if rec := e.do(t, alice, "DELETE", "/api/v1/files/"+node.ID, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("purge: %d", rec.Code)
	}

	if rec := e.do(t, alice, "GET", "/api/v1/files/"+node.ID, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("after purge: %d, want 404", rec.Code)
	}
}

func TestPatchRenameMoveStar(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")

	folderRec := e.doJSON(t, alice, "POST", "/api/v1/folders", map[string]string{"name": "Archive"})
	folder := decodeNode(t, folderRec)
	node := e.upload(t, alice, "", "draft.txt", "x")

	rec := e.doJSON(t, alice, "PATCH", "/api/v1/files/"+node.ID,
		map[string]interface{}{"name": "final.txt", "parent_id": folder.ID, "is_starred": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeNode(t, rec)
	if updated.Name != "final.txt" || updated.ParentID != folder.ID || !updated.Starred {
		t.Errorf("updated = %+v", updated)
	}

	// Empty patch is rejected
	if rec := e.doJSON(t, alice, "PATCH", "/api/v1/files/"+node.ID, map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: %d, want 400", rec.Code)
	}
}

func TestMoveIntoOwnSubtreeMapsTo400(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")

	outer := decodeNode(t, e.doJSON(t, alice, "POST", "/api/v1/folders", map[string]string{"name": "outer"}))
	inner := decodeNode(t, e.doJSON(t, alice, "POST", "/api/v1/folders",
		map[string]string{"name": "inner", "parent_id": outer.ID}))

	rec := e.doJSON(t, alice, "PATCH", "/api/v1/files/"+outer.ID,
		map[string]string{"parent_id": inner.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("cycle move: %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestShareFlow(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	bob := e.token(t, "bob")

	node := e.upload(t, alice, "", "report.pdf", "pdf bytes")

	// Bob cannot see it yet
	if rec := e.do(t, bob, "GET", "/api/v1/files/"+node.ID, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("pre-share visibility: %d, want 404", rec.Code)
	}

	rec := e.doJSON(t, alice, "POST", "/api/v1/files/"+node.ID+"/share",
		map[string]string{"grantee_id": "bob", "permission": "viewer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("share: %d: %s", rec.Code, rec.Body.String())
	}

	// Sharing with the owner conflicts
	rec = e.doJSON(t, alice, "POST", "/api/v1/files/"+node.ID+"/share",
		map[string]string{"grantee_id": "alice", "permission": "viewer"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("self share: %d, want 409", rec.Code)
	}

	// Bob sees it in shared view and can download
	rec = e.do(t, bob, "GET", "/api/v1/files/shared", nil, "")
	var sharedResp struct {
		Items []drive.Node `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &sharedResp)
	if len(sharedResp.Items) != 1 || sharedResp.Items[0].ID != node.ID {
		t.Fatalf("shared view = %+v", sharedResp.Items)
	}
	if rec := e.do(t, bob, "GET", "/api/v1/files/"+node.ID+"/download", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("grantee download: %d", rec.Code)
	}

	// Unshare revokes access
	if rec := e.do(t, alice, "DELETE", "/api/v1/files/"+node.ID+"/share/bob", nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("unshare: %d", rec.Code)
	}
	if rec := e.do(t, bob, "GET", "/api/v1/files/"+node.ID, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("post-unshare visibility: %d, want 404", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	e.upload(t, alice, "", "quarterly-report.txt", "q1")
	e.upload(t, alice, "", "holiday-photos.zip", "zip")

	rec := e.do(t, alice, "GET", "/api/v1/files/search?q=REPORT", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d", rec.Code)
	}
	var resp struct {
		Items []drive.Node `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].Name != "quarterly-report.txt" {
		t.Errorf("search items = %+v", resp.Items)
	}

	if rec := e.do(t, alice, "GET", "/api/v1/files/search", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing q: %d, want 400", rec.Code)
	}
}

func TestReplaceContent(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	node := e.upload(t, alice, "", "notes.txt", "v1")

	rec := e.do(t, alice, "PUT", "/api/v1/files/"+node.ID+"/content",
		strings.NewReader("version two"), "text/plain")
	if rec.Code != http.StatusOK {
		t.Fatalf("replace: %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeNode(t, rec)
	if updated.SizeBytes != int64(len("version two")) {
		t.Errorf("size = %d", updated.SizeBytes)
	}

	dl := e.do(t, alice, "GET", "/api/v1/files/"+node.ID+"/download", nil, "")
	if dl.Body.String() != "version two" {
		t.Errorf("downloaded %q", dl.Body.String())
	}
}

func TestUsageEndpoint(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	e.upload(t, alice, "", "a.bin", "12345")

	rec := e.do(t, alice, "GET", "/api/v1/usage", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("usage: %d", rec.Code)
	}
	var resp struct {
		Used  int64 `json:"used_bytes"`
		Limit int64 `json:"limit_bytes"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Used != 5 {
		t.Errorf("used = %d, want 5", resp.Used)
	}
	if resp.Limit != 1<<30 {
		t.Errorf("limit = %d", resp.Limit)
	}
}

func TestUploadIntoSharedFolderRequiresEditor(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token(t, "alice")
	bob := e.token(t, "bob")

	folder := decodeNode(t, e.doJSON(t, alice, "POST", "/api/v1/folders", map[string]string{"name": "Shared"}))

	uploadAs := func(token string) int {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("folder_id", folder.ID)
		fw, _ := mw.CreateFormFile("file", fmt.Sprintf("f-%d.txt", time.Now().UnixNano()))
		fw.Write([]byte("x"))
		mw.Close()
		return e.do(t, token, "POST", "/api/v1/files/upload", &buf, mw.FormDataContentType()).Code
	}

	if code := uploadAs(bob); code != http.StatusBadRequest {
		t.Fatalf("no grant upload: %d, want 400", code)
	}

	e.doJSON(t, alice, "POST", "/api/v1/files/"+folder.ID+"/share",
		map[string]string{"grantee_id": "bob", "permission": "viewer"})
	if code := uploadAs(bob); code != http.StatusBadRequest {
		t.Fatalf("viewer upload: %d, want 400", code)
	}

	e.doJSON(t, alice, "POST", "/api/v1/files/"+folder.ID+"/share",
		map[string]string{"grantee_id": "bob", "permission": "editor"})
	if code := uploadAs(bob); code != http.StatusCreated {
		t.Fatalf("editor upload: %d, want 201", code)
	}
}
