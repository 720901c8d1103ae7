package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notely/internal/auth"
	"notely/internal/config"
	"notely/internal/database/dto"
	"notely/internal/database/models"
	"notely/internal/database/repositories/repotest"
	"notely/internal/notes"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealth map[string]string

func (f fakeHealth) Health() map[string]string { return f }

type testServer struct {
	*FiberServer
	users    *repotest.Users
	metadata *repotest.Metadata
	contents *repotest.Contents
}

const testSecret = "test-secret"

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := repotest.NewClock()
	ts := &testServer{
		users:    repotest.NewUsers(clock),
		metadata: repotest.NewMetadata(clock),
		contents: repotest.NewContents(clock),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		AppEnv:       "test",
		JWTSecret:    testSecret,
		TokenTTL:     time.Hour,
		AllowOrigins: "*",
	}
	ts.FiberServer = newServer(cfg, fakeHealth{"status": "up"}, ts.users, notes.NewCoordinator(ts.metadata, ts.contents, log), log)
	return ts
}

func (ts *testServer) storeCalls() int64 {
	return ts.users.Calls() + ts.metadata.Calls() + ts.contents.Calls()
}

// do sends a request and decodes the JSON response into out when out is
// not nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) register(t *testing.T, username, email, password string) dto.AuthResponse {
	t.Helper()
	var res dto.AuthResponse
	status := ts.do(t, "POST", "/api/auth/register", "", dto.RegisterRequest{Username: username, Email: email, Password: password}, &res)
	require.Equal(t, http.StatusCreated, status)
	return res
}

func tagList(tags ...string) *[]string {
	if tags == nil {
		tags = []string{}
	}
	return &tags
}

func TestNoteLifecycle(t *testing.T) {
	ts := newTestServer(t)

	reg := ts.register(t, "alice", "a@x.com", "pw1234")
	assert.Equal(t, "User registered successfully", reg.Msg)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, dto.PublicUser{ID: reg.User.ID, Username: "alice", Email: "a@x.com"}, reg.User)

	var created models.Note
	status := ts.do(t, "POST", "/api/notes", reg.Token, dto.NoteInput{Title: "T1", Content: "C1", Tags: tagList("x", "y")}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEqual(t, uuid.Nil, created.ID)
	require.NotNil(t, created.Content)
	assert.Equal(t, "C1", *created.Content)
	assert.Equal(t, []string{"x", "y"}, created.Tags)
	assert.Equal(t, reg.User.ID, created.UserID)

	path := "/api/notes/" + created.ID.String()

	var fetched models.Note
	require.Equal(t, http.StatusOK, ts.do(t, "GET", path, reg.Token, nil, &fetched))
	assert.Equal(t, "T1", fetched.Title)
	assert.Equal(t, "C1", *fetched.Content)
	assert.Equal(t, []string{"x", "y"}, fetched.Tags)

	var updated models.Note
	status = ts.do(t, "PUT", path, reg.Token, dto.NoteInput{Title: "T2", Content: "C2", Tags: tagList()}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, []string{}, updated.Tags)

	var deleted dto.DeleteResponse
	require.Equal(t, http.StatusOK, ts.do(t, "DELETE", path, reg.Token, nil, &deleted))
	assert.Equal(t, created.ID, deleted.ID)

	var missing dto.Message
	require.Equal(t, http.StatusNotFound, ts.do(t, "GET", path, reg.Token, nil, &missing))
	assert.Equal(t, msgNoteNotFound, missing.Msg)
}

func TestListNotes(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice", "a@x.com", "pw1234")
	bob := ts.register(t, "bob", "b@x.com", "pw1234")

	var list []models.Note
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/api/notes", alice.Token, nil, &list))
	assert.NotNil(t, list)
	assert.Empty(t, list)

	var a, b models.Note
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/api/notes", alice.Token, dto.NoteInput{Title: "A", Content: "a"}, &a))
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/api/notes", alice.Token, dto.NoteInput{Title: "B", Content: "b"}, &b))
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/api/notes", bob.Token, dto.NoteInput{Title: "mine", Content: "m"}, nil))

	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/api/notes", alice.Token, nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
	assert.Equal(t, []string{}, list[0].Tags, "missing tags are returned as an empty list")

	var other dto.Message
	require.Equal(t, http.StatusNotFound, ts.do(t, "GET", "/api/notes/"+a.ID.String(), bob.Token, nil, &other))
}

func TestNoteValidation(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.register(t, "alice", "a@x.com", "pw1234")
	var created models.Note
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/api/notes", reg.Token, dto.NoteInput{Title: "T", Content: "C"}, &created))
	path := "/api/notes/" + created.ID.String()

	before := ts.metadata.Calls() + ts.contents.Calls()
	for _, in := range []dto.NoteInput{{Title: "", Content: "x", Tags: tagList()}, {Title: "x", Content: "", Tags: tagList()}} {
		var res dto.Message
		assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/notes", reg.Token, in, &res))
		assert.Equal(t, msgMissingNoteFields, res.Msg)
		assert.Equal(t, http.StatusBadRequest, ts.do(t, "PUT", path, reg.Token, in, &res))
	}
	assert.Equal(t, before, ts.metadata.Calls()+ts.contents.Calls())

	var fetched models.Note
	require.Equal(t, http.StatusOK, ts.do(t, "GET", path, reg.Token, nil, &fetched))
	assert.Equal(t, "T", fetched.Title)
	assert.Equal(t, "C", *fetched.Content)
}

func TestNoteWireKeys(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.register(t, "alice", "a@x.com", "pw1234")

	var raw map[string]any
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/api/notes", reg.Token, dto.NoteInput{Title: "T1", Content: "C1", Tags: tagList("x")}, &raw))
	for _, key := range []string{"id", "user_id", "title", "content", "tags", "createdAt", "updatedAt", "mongoNoteId"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "created_at")
	assert.NotContains(t, raw, "content_ref")
	assert.Len(t, raw, 8)
}

func TestUpdateRequiresTags(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.register(t, "alice", "a@x.com", "pw1234")
	var created models.Note
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/api/notes", reg.Token, dto.NoteInput{Title: "T1", Content: "C1", Tags: tagList("x", "y")}, &created))
	path := "/api/notes/" + created.ID.String()

	for name, body := range map[string]map[string]any{
		"absent": {"title": "T2", "content": "C2"},
		"null":   {"title": "T2", "content": "C2", "tags": nil},
	} {
		t.Run(name, func(t *testing.T) {
			var res dto.Message
			assert.Equal(t, http.StatusBadRequest, ts.do(t, "PUT", path, reg.Token, body, &res))
			assert.Equal(t, msgMissingNoteFields, res.Msg)
		})
	}

	var fetched models.Note
	require.Equal(t, http.StatusOK, ts.do(t, "GET", path, reg.Token, nil, &fetched))
	assert.Equal(t, "T1", fetched.Title)
	assert.Equal(t, []string{"x", "y"}, fetched.Tags)

	var updated models.Note
	require.Equal(t, http.StatusOK, ts.do(t, "PUT", path, reg.Token, map[string]any{"title": "T2", "content": "C2", "tags": []string{}}, &updated))
	assert.Equal(t, []string{}, updated.Tags)
}

func TestMalformedAndUnknownIDs(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.register(t, "alice", "a@x.com", "pw1234")
	body := dto.NoteInput{Title: "T", Content: "C", Tags: tagList()}

	for _, method := range []string{"GET", "PUT", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			var res dto.Message
			assert.Equal(t, http.StatusBadRequest, ts.do(t, method, "/api/notes/not-a-uuid", reg.Token, body, &res))
			assert.Equal(t, msgInvalidNoteID, res.Msg)

			assert.Equal(t, http.StatusNotFound, ts.do(t, method, "/api/notes/"+uuid.NewString(), reg.Token, body, &res))
			assert.Equal(t, msgNoteNotFound, res.Msg)
		})
	}
	assert.Empty(t, ts.metadata.Rows())
	assert.Empty(t, ts.contents.Docs())
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.register(t, "alice", "a@x.com", "pw1234")

	expiredIssuer := auth.NewTokens(testSecret, -time.Minute)
	expired, err := expiredIssuer.Issue(auth.Identity{ID: reg.User.ID, Username: "alice"})
	require.NoError(t, err)
	forged, err := auth.NewTokens("some-other-secret", time.Hour).Issue(auth.Identity{ID: reg.User.ID, Username: "alice"})
	require.NoError(t, err)

	id := uuid.NewString()
	routes := []struct{ method, path string }{
		{"GET", "/api/notes"},
		{"POST", "/api/notes"},
		{"GET", "/api/notes/" + id},
		{"PUT", "/api/notes/" + id},
		{"DELETE", "/api/notes/" + id},
	}
	before := ts.storeCalls()
	for _, route := range routes {
		for name, token := range map[string]string{"none": "", "expired": expired, "forged": forged} {
			t.Run(route.method+" "+route.path+" "+name, func(t *testing.T) {
				var res dto.Message
				status := ts.do(t, route.method, route.path, token, dto.NoteInput{Title: "T", Content: "C"}, &res)
				assert.Equal(t, http.StatusUnauthorized, status)
				assert.NotEmpty(t, res.Msg)
			})
		}
	}
	assert.Equal(t, before, ts.storeCalls())
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", "a@x.com", "pw1234")

	cases := map[string]struct {
		req  dto.RegisterRequest
		want string
	}{
		"missing username": {dto.RegisterRequest{Email: "c@x.com", Password: "pw"}, msgMissingFields},
		"missing password": {dto.RegisterRequest{Username: "carol", Email: "c@x.com"}, msgMissingFields},
		"duplicate email":  {dto.RegisterRequest{Username: "carol", Email: "a@x.com", Password: "pw"}, msgUserExists},
		"duplicate name":   {dto.RegisterRequest{Username: "alice", Email: "c@x.com", Password: "pw"}, msgUserExists},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var res dto.Message
			assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/auth/register", "", tc.req, &res))
			assert.Equal(t, tc.want, res.Msg)
		})
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.register(t, "alice", "a@x.com", "pw1234")

	var ok dto.AuthResponse
	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/api/auth/login", "", dto.LoginCredentials{Email: "a@x.com", Password: "pw1234"}, &ok))
	assert.Equal(t, "Logged in successfully", ok.Msg)
	assert.Equal(t, reg.User, ok.User)
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/api/notes", ok.Token, nil, &[]models.Note{}))

	var wrongPassword, unknownEmail dto.Message
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/auth/login", "", dto.LoginCredentials{Email: "a@x.com", Password: "nope"}, &wrongPassword))
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/auth/login", "", dto.LoginCredentials{Email: "z@x.com", Password: "pw1234"}, &unknownEmail))
	assert.Equal(t, msgInvalidCredentials, wrongPassword.Msg)
	assert.Equal(t, wrongPassword, unknownEmail)
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.App.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Notes App Backend is running!", string(body))

	var health map[string]string
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/health", "", nil, &health))
	assert.Equal(t, "up", health["status"])

	ts.db = fakeHealth{"status": "down", "error": "postgres down"}
	require.Equal(t, http.StatusServiceUnavailable, ts.do(t, "GET", "/health", "", nil, &health))
}
