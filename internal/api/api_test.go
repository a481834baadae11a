package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/plugin"
	"github.com/starford/othala/internal/skills"
	"github.com/starford/othala/internal/testutil"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/vaultdb"
)

// testEnv sets up a temp vault, query layer, service, and router.
// An empty authToken means open mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithVault(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithVault(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*noteservice.Service, http.Handler, string) {
	t.Helper()

	vaultDir, store := testutil.TestVault(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := vaultdb.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	registry := plugin.NewRegistry(logger)
	registry.LoadBuiltins()

	idx := vault.New(vaultDir, logger)
	sk := skills.New(filepath.Join(vaultDir, "skills"), logger)
	svc := noteservice.NewService(store, idx, sk, db, registry, noteservice.WithLogger(logger))
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	router := NewRouter(svc, authEnabled, authToken, sseHandler)
	return svc, router, vaultDir
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	var resp HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" || resp.Version == "" {
		t.Errorf("health body = %+v", resp)
	}
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{
		"path":    "hello.md",
		"content": "---\ntitle: Hello\n---\nWorld, see [[other]].",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/notes/hello", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Slug != "hello" || note.Path != "hello.md" {
		t.Errorf("identity = %q / %q", note.Slug, note.Path)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
	if len(note.Links) != 1 || note.Links[0] != "other" {
		t.Errorf("links = %v", note.Links)
	}
	if note.Checksum == "" {
		t.Error("missing checksum")
	}
}

func TestCreateNote_TitleFallsBackToSlug(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{
		"path":    "plain.md",
		"content": "# A heading is not a title\nBody.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "plain" {
		t.Errorf("title = %q, want slug fallback", note.Title)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	payload := map[string]string{"path": "dup.md", "content": "a"}
	if w := doJSON(t, router, http.MethodPost, "/notes", payload); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/notes", payload); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateNote_RejectsNonMarkdown(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "evil.sh", "content": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-markdown create = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "lock.md", "content": "v1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var created NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	// Update with correct checksum.
	updateBody, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/lock", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Update with stale checksum → 412.
	req = httptest.NewRequest(http.MethodPut, "/notes/lock", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum) // stale now
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("update with stale checksum = %d, want 412", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "nolock.md", "content": "v1"})

	// Update without If-Match should succeed (no locking enforced).
	w := doJSON(t, router, http.MethodPut, "/notes/nolock", map[string]string{"content": "v2"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "bye.md", "content": "gone"})

	if w := doJSON(t, router, http.MethodDelete, "/notes/bye", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/notes/bye", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListNotes_TagAndLimit(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "a.md", "content": "---\ntags: [work]\n---\nalpha"})
	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "b.md", "content": "---\ntags: [work]\n---\nbeta"})
	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "c.md", "content": "gamma"})

	w := doJSON(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}

	w = doJSON(t, router, http.MethodGet, "/notes?tag=work", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("tag filter total = %d, want 2", resp.Total)
	}

	w = doJSON(t, router, http.MethodGet, "/notes?limit=1", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 1 {
		t.Errorf("limited notes = %d, want 1", len(resp.Notes))
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "find.md", "content": "uniquetoken here"})

	w := doJSON(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Slug != "find" {
		t.Errorf("search results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	if w := doJSON(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "a.md", "content": "links to [[b]]"})
	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "b.md", "content": "links to [[a]]"})

	w := doJSON(t, router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	var resp struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	if len(resp.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(resp.Edges))
	}
}

func TestTagsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "a.md", "content": "#tools/marimo and #daily"})
	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "b.md", "content": "#daily again"})

	w := doJSON(t, router, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags = %d", w.Code)
	}
	var counts map[string]int
	_ = json.Unmarshal(w.Body.Bytes(), &counts)
	if counts["daily"] != 2 || counts["tools/marimo"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	// Hierarchical tag through the wildcard route.
	w = doJSON(t, router, http.MethodGet, "/tags/tools/marimo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags/tools/marimo = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Notes[0].Slug != "a" {
		t.Errorf("notes with tag = %+v", resp)
	}
}

func TestNoteHTMLEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "doc.md", "content": "# Heading\n\n**bold**"})

	w := doJSON(t, router, http.MethodGet, "/notes/doc/html", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("html = %d", w.Code)
	}
	var rendered RenderedNote
	_ = json.Unmarshal(w.Body.Bytes(), &rendered)
	if !bytes.Contains([]byte(rendered.HTML), []byte("<h1")) {
		t.Errorf("html = %q", rendered.HTML)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "a.md", "content": "see [[b]]"})
	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "b.md", "content": "target"})

	w := doJSON(t, router, http.MethodGet, "/notes/b/backlinks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var resp BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Backlinks) != 1 || resp.Backlinks[0] != "a" {
		t.Errorf("backlinks = %+v", resp)
	}

	if w := doJSON(t, router, http.MethodGet, "/notes/never-linked/backlinks", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown target = %d, want 404", w.Code)
	}
}

func TestTodoCaptureListResolve(t *testing.T) {
	_, router := testEnv(t, "")

	// A note with a raw TK task on line 1, so body and file lines agree.
	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "plan.md", "content": "- [ ] TK: ship it\n"})

	w := doJSON(t, router, http.MethodPost, "/todos", map[string]string{"description": "water plants", "source_slug": "garden"})
	if w.Code != http.StatusCreated {
		t.Fatalf("capture = %d, body = %s", w.Code, w.Body.String())
	}
	var captured CaptureResponse
	_ = json.Unmarshal(w.Body.Bytes(), &captured)
	if !bytes.Contains([]byte(captured.Line), []byte("TK: water plants")) {
		t.Errorf("line = %q", captured.Line)
	}

	w = doJSON(t, router, http.MethodGet, "/todos?pending=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list todos = %d", w.Code)
	}
	var list TodoListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total < 2 {
		t.Fatalf("todos total = %d, want at least the task and the capture", list.Total)
	}

	w = doJSON(t, router, http.MethodPost, "/todos/resolve", map[string]any{"source_slug": "plan", "line_no": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve = %d, body = %s", w.Code, w.Body.String())
	}
	var resolved ResolveResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resolved)
	if !resolved.Resolved {
		t.Error("expected resolve to rewrite the line")
	}

	// Out-of-range resolve answers 200 with resolved=false.
	w = doJSON(t, router, http.MethodPost, "/todos/resolve", map[string]any{"source_slug": "plan", "line_no": 99})
	_ = json.Unmarshal(w.Body.Bytes(), &resolved)
	if w.Code != http.StatusOK || resolved.Resolved {
		t.Errorf("out-of-range resolve = %d resolved=%v", w.Code, resolved.Resolved)
	}
}

func TestShorthandEndpoint(t *testing.T) {
	svc, router, vaultDir := testEnvWithVault(t, false, "", nil)

	skill := "---\nskill: review\nname: Review\ndescription: Weekly review\ntriggers: [review]\n---\nSteps."
	testutil.WriteFile(t, vaultDir, "skills/review.md", skill)
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/shorthand", map[string]string{"text": "tk buy stamps"})
	if w.Code != http.StatusOK {
		t.Fatalf("shorthand capture = %d, body = %s", w.Code, w.Body.String())
	}
	var result ShorthandResult
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.Action != noteservice.ShorthandCaptured {
		t.Errorf("action = %q", result.Action)
	}

	w = doJSON(t, router, http.MethodPost, "/shorthand", map[string]string{"text": "review"})
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.Action != noteservice.ShorthandSkills || len(result.Skills) != 1 {
		t.Errorf("skill resolution = %+v", result)
	}

	if w := doJSON(t, router, http.MethodPost, "/shorthand", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty shorthand = %d, want 400", w.Code)
	}
}

func TestSkillsEndpoint(t *testing.T) {
	svc, router, vaultDir := testEnvWithVault(t, false, "", nil)

	testutil.WriteFiles(t, vaultDir, map[string]string{
		"skills/review.md": "---\nskill: review\nname: Review\ndescription: Weekly review\ntriggers: [review]\n---\n.",
		"skills/inbox.md":  "---\nskill: inbox\nname: Inbox Zero\ndescription: Clear the inbox\ntriggers: [inbox]\n---\n.",
	})
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/skills", nil)
	var resp SkillListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Skills) != 2 {
		t.Errorf("all skills = %d, want 2", len(resp.Skills))
	}

	w = doJSON(t, router, http.MethodGet, "/skills?q=inbox", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Skills) != 1 || resp.Skills[0].Name != "Inbox Zero" {
		t.Errorf("searched skills = %+v", resp.Skills)
	}
}

func TestViewsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "a.md", "content": "---\nstatus: doing\ntags: [work]\n---\nalpha"})
	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "b.md", "content": "---\nstatus: done\n---\nbeta"})

	w := doJSON(t, router, http.MethodGet, "/views/table?tag=work", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("table = %d, body = %s", w.Code, w.Body.String())
	}
	var table vaultdb.Result
	_ = json.Unmarshal(w.Body.Bytes(), &table)
	if len(table.Rows) != 1 {
		t.Errorf("table rows = %d, want 1", len(table.Rows))
	}

	w = doJSON(t, router, http.MethodGet, "/views/kanban", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("kanban = %d", w.Code)
	}
	var kanban KanbanResponse
	_ = json.Unmarshal(w.Body.Bytes(), &kanban)
	if len(kanban.Groups) != 2 {
		t.Errorf("kanban groups = %d, want 2", len(kanban.Groups))
	}

	w = doJSON(t, router, http.MethodGet, "/views/gallery", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("gallery = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/views/keys", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("keys = %d", w.Code)
	}
	var keys KeysResponse
	_ = json.Unmarshal(w.Body.Bytes(), &keys)
	found := false
	for _, k := range keys.Keys {
		if k == "status" {
			found = true
		}
	}
	if !found {
		t.Errorf("keys = %v, want status present", keys.Keys)
	}

	w = doJSON(t, router, http.MethodGet, "/views/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags view = %d", w.Code)
	}
	var usage TagUsageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &usage)
	if len(usage.Tags) != 1 || usage.Tags[0].Tag != "work" || usage.Tags[0].Count != 1 {
		t.Errorf("tag usage = %+v", usage.Tags)
	}

	// Invalid kanban group key is a client error.
	if w := doJSON(t, router, http.MethodGet, "/views/kanban?group_by=bad%20key", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid group key = %d, want 400", w.Code)
	}
}

func TestCanvasEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "a.md", "content": "[[b]]"})

	w := doJSON(t, router, http.MethodGet, "/canvas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("canvas = %d", w.Code)
	}
	var snapshot struct {
		Store  map[string]any `json:"store"`
		Schema map[string]any `json:"schema"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &snapshot)
	if len(snapshot.Store) == 0 {
		t.Error("canvas store is empty")
	}
}

func TestPluginEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/plugins", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("plugins = %d", w.Code)
	}
	var resp PluginListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Plugins) != 2 {
		t.Errorf("plugins = %d, want 2 builtins", len(resp.Plugins))
	}

	w = doJSON(t, router, http.MethodGet, "/plugins/graph-view/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("plugin state = %d", w.Code)
	}
	var state PluginStateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &state)
	if state.ID != "graph-view" {
		t.Errorf("state id = %q", state.ID)
	}

	if w := doJSON(t, router, http.MethodGet, "/plugins/nope/state", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown plugin = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"path": "auth.md", "content": "test"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := doJSON(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Open(t *testing.T) {
	_, router := testEnv(t, "")

	if w := doJSON(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("open mode = %d, want 200", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	if w := doJSON(t, router, http.MethodGet, "/notes/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPut, "/notes/ghost", map[string]string{"content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := sseTestRouter(t, true, "secret")

	if w := doJSON(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthOpen(t *testing.T) {
	router := sseTestRouter(t, false, "")

	// Open mode → should not 401. The stub handler blocks until the
	// request context is done, so cancel shortly.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth in open mode")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := sseTestRouter(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// sseTestRouter builds a router with a stub SSE handler that writes
// headers and blocks until the request context is done.
func sseTestRouter(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()

	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})

	_, router, _ := testEnvWithVault(t, authEnabled, token, stub)
	return router
}
