package backend

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/auth"
	"github.com/ziadkadry99/folio/internal/posts"
)

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

// fakeAPI answers every request with the next canned response for its
// method and path, recording what it saw.
type fakeAPI struct {
	mu        sync.Mutex
	requests  []recorded
	responses map[string][]cannedResponse
}

type cannedResponse struct {
	status int
	body   string
}

func (f *fakeAPI) on(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.responses[key] = append(f.responses[key], cannedResponse{status, body})
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{r.Method, r.URL.Path, r.URL.Query(), r.Header.Clone(), string(body)})
	key := r.Method + " " + r.URL.Path
	queue := f.responses[key]
	var resp cannedResponse
	if len(queue) > 0 {
		resp = queue[0]
		f.responses[key] = queue[1:]
	} else {
		resp = cannedResponse{http.StatusOK, "[]"}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	io.WriteString(w, resp.body)
}

func (f *fakeAPI) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func setupClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{responses: make(map[string][]cannedResponse)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL + "/", AnonKey: "anon"}, zap.NewNop()), api
}

const tweetJSON = `{
	"id": "t1",
	"user_id": "u1",
	"content": "hello",
	"media_attachments": [{"type": "image", "url": "https://img.test/a.png"}],
	"parent_tweet_id": null,
	"is_published": true,
	"published_at": "2025-06-01T10:00:00Z",
	"created_at": "2025-06-01T09:00:00Z",
	"updated_at": "2025-06-01T09:30:00Z",
	"view_count": 4,
	"like_count": 1,
	"tweet_tags": [{"tags": {"id": 1, "name": "Go", "slug": "go"}}, {"tags": [{"id": 2, "name": "Life", "slug": "life"}]}]
}`

func TestHeadersUseAnonKeyByDefault(t *testing.T) {
	c, api := setupClient(t)
	_, err := c.Posts().Tags(context.Background())
	require.NoError(t, err)

	req := api.last(t)
	assert.Equal(t, "anon", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon", req.Header.Get("Authorization"))
	assert.Equal(t, "name.asc", req.Query.Get("order"))
}

func TestHeadersUseSessionAccessToken(t *testing.T) {
	c, api := setupClient(t)
	ctx := auth.WithSession(context.Background(), &auth.Session{UserID: "u1", AccessToken: "user-token"})
	_, err := c.Posts().Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-token", api.last(t).Header.Get("Authorization"))
}

func TestGetDecodesTweet(t *testing.T) {
	c, api := setupClient(t)
	api.on("GET", tweetsPath, 200, "["+tweetJSON+"]")

	p, err := c.Posts().Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Content)
	assert.True(t, p.Published)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), p.PublishedAt.UTC())
	assert.Equal(t, 4, p.ViewCount)
	require.Len(t, p.Media, 1)
	assert.Equal(t, posts.MediaImage, p.Media[0].Type)
	assert.Equal(t, []posts.Tag{{ID: 1, Name: "Go", Slug: "go"}, {ID: 2, Name: "Life", Slug: "life"}}, p.Tags)

	req := api.last(t)
	assert.Equal(t, "eq.t1", req.Query.Get("id"))
	assert.Contains(t, req.Query.Get("select"), "tweet_tags(tags(id,name,slug))")
}

func TestGetNotFound(t *testing.T) {
	c, _ := setupClient(t)
	_, err := c.Posts().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, posts.ErrNotFound)
}

func TestListPublishedByTag(t *testing.T) {
	c, api := setupClient(t)
	api.on("GET", tagsPath, 200, `[{"id": 3, "name": "Go", "slug": "go"}]`)
	api.on("GET", tweetTagsPath, 200, `[{"tweet_id": "t1"}, {"tweet_id": "t2"}]`)
	api.on("GET", tweetsPath, 200, "["+tweetJSON+"]")

	list, err := c.Posts().List(context.Background(), posts.Filter{Tag: "go", PublishedOnly: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)

	reqs := api.all()
	require.Len(t, reqs, 3)
	assert.Equal(t, "eq.go", reqs[0].Query.Get("slug"))
	assert.Equal(t, "eq.3", reqs[1].Query.Get("tag_id"))
	q := reqs[2].Query
	assert.Equal(t, `in.("t1","t2")`, q.Get("id"))
	assert.Equal(t, "eq.true", q.Get("is_published"))
	assert.Equal(t, "published_at.desc,created_at.desc", q.Get("order"))
	assert.Equal(t, "10", q.Get("limit"))
}

func TestListUnknownTagIsEmpty(t *testing.T) {
	c, api := setupClient(t)
	list, err := c.Posts().List(context.Background(), posts.Filter{Tag: "nope"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Len(t, api.all(), 1)
}

func TestReplyCounts(t *testing.T) {
	c, api := setupClient(t)
	api.on("GET", tweetsPath, 200, `[{"parent_tweet_id": "a"}, {"parent_tweet_id": "a"}, {"parent_tweet_id": "b"}]`)

	counts, err := c.Posts().ReplyCounts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, counts)
	assert.Equal(t, "eq.true", api.last(t).Query.Get("is_published"))
}

func TestCreateLinksTags(t *testing.T) {
	c, api := setupClient(t)
	api.on("POST", tweetsPath, 201, `[{"id": "new-id", "created_at": "2025-06-02T00:00:00Z"}]`)
	api.on("POST", tweetTagsPath, 201, ``)

	p := &posts.Post{UserID: "u1", Content: "hi", Published: true, Tags: []posts.Tag{{ID: 7}}}
	require.NoError(t, c.Posts().Create(context.Background(), p))
	assert.Equal(t, "new-id", p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	reqs := api.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, "return=representation", reqs[0].Header.Get("Prefer"))
	var row map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &row))
	assert.Equal(t, "hi", row["content"])
	assert.Nil(t, row["parent_tweet_id"])
	assert.NotContains(t, row, "id")
	assert.JSONEq(t, `[{"tweet_id": "new-id", "tag_id": 7}]`, reqs[1].Body)
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	c, api := setupClient(t)
	err := c.Posts().Update(context.Background(), &posts.Post{ID: "gone", Content: "x"})
	assert.ErrorIs(t, err, posts.ErrNotFound)
	assert.Equal(t, "PATCH", api.last(t).Method)
}

func TestIncrementViewsCallsFunction(t *testing.T) {
	c, api := setupClient(t)
	api.on("POST", rpcPath+"increment_view_count", 204, "")
	require.NoError(t, c.Posts().IncrementViews(context.Background(), "t1"))
	assert.JSONEq(t, `{"tweet_id": "t1"}`, api.last(t).Body)
}

func TestPublishDue(t *testing.T) {
	c, api := setupClient(t)
	api.on("PATCH", tweetsPath, 200, `[{"id": "a"}, {"id": "b"}]`)

	n, err := c.Posts().PublishDue(context.Background(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	q := api.last(t).Query
	assert.Equal(t, "eq.false", q.Get("is_published"))
	assert.Equal(t, "lte.2025-06-01T12:00:00Z", q.Get("published_at"))
}

func TestTagCounts(t *testing.T) {
	c, api := setupClient(t)
	api.on("GET", tagsPath, 200, `[{"id": 1, "name": "Go", "slug": "go", "tweet_tags": [{"count": 3}]},
		{"id": 2, "name": "Empty", "slug": "empty", "tweet_tags": []}]`)

	counts, err := c.Posts().TagCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "go", counts[0].Slug)
	assert.Equal(t, 3, counts[0].Posts)
	assert.Equal(t, 0, counts[1].Posts)
}

func TestCreateTagRejectsDuplicate(t *testing.T) {
	c, api := setupClient(t)
	api.on("GET", tagsPath, 200, `[{"id": 1, "name": "Go", "slug": "go"}]`)

	_, err := c.Posts().CreateTag(context.Background(), "go", "go")
	assert.ErrorIs(t, err, posts.ErrInvalid)
	assert.Len(t, api.all(), 1)
}

func TestSetTagsReplaces(t *testing.T) {
	c, api := setupClient(t)
	require.NoError(t, c.Posts().SetTags(context.Background(), "t1", []int64{1, 2}))

	reqs := api.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, "DELETE", reqs[0].Method)
	assert.Equal(t, "eq.t1", reqs[0].Query.Get("tweet_id"))
	assert.Equal(t, "POST", reqs[1].Method)
	assert.JSONEq(t, `[{"tweet_id": "t1", "tag_id": 1}, {"tweet_id": "t1", "tag_id": 2}]`, reqs[1].Body)
}

func TestAPIErrorDecoding(t *testing.T) {
	c, api := setupClient(t)
	api.on("GET", tagsPath, 400, `{"code": "PGRST100", "message": "bad filter"}`)
	_, err := c.Posts().Tags(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "PGRST100", apiErr.Code)
	assert.Equal(t, "bad filter", apiErr.Message)

	api.on("GET", tagsPath, 401, `{"msg": "JWT expired"}`)
	_, err = c.Posts().Tags(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSendMagicLinkUsesPKCE(t *testing.T) {
	c, api := setupClient(t)
	api.on("POST", "/auth/v1/otp", 200, `{}`)

	verifier, err := c.Auth().SendMagicLink(context.Background(), " Owner@Example.com ", "http://localhost:8080/auth/callback")
	require.NoError(t, err)
	require.NotEmpty(t, verifier)

	req := api.last(t)
	assert.Equal(t, "http://localhost:8080/auth/callback", req.Query.Get("redirect_to"))
	var body struct {
		Email               string `json:"email"`
		CreateUser          bool   `json:"create_user"`
		CodeChallenge       string `json:"code_challenge"`
		CodeChallengeMethod string `json:"code_challenge_method"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Equal(t, "owner@example.com", body.Email)
	assert.True(t, body.CreateUser)
	assert.Equal(t, "s256", body.CodeChallengeMethod)
	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), body.CodeChallenge)
}

func TestExchangeCode(t *testing.T) {
	c, api := setupClient(t)
	api.on("POST", "/auth/v1/token", 200, `{"access_token": "at", "refresh_token": "rt",
		"expires_at": 1750000000, "user": {"id": "u1", "email": "Owner@Example.com"}}`)

	id, err := c.Auth().ExchangeCode(context.Background(), "code", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "owner@example.com", id.Email)
	assert.Equal(t, "at", id.AccessToken)
	assert.Equal(t, time.Unix(1750000000, 0), id.ExpiresAt)

	req := api.last(t)
	assert.Equal(t, "pkce", req.Query.Get("grant_type"))
	assert.JSONEq(t, `{"auth_code": "code", "code_verifier": "verifier"}`, req.Body)
}

func TestExchangeCodeRejected(t *testing.T) {
	c, api := setupClient(t)
	api.on("POST", "/auth/v1/token", 400, `{"error": "invalid_grant", "error_description": "code expired"}`)

	_, err := c.Auth().ExchangeCode(context.Background(), "code", "verifier")
	assert.ErrorIs(t, err, auth.ErrInvalidCode)

	_, err = c.Auth().ExchangeCode(context.Background(), "code", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCode)
}

func TestUser(t *testing.T) {
	c, api := setupClient(t)
	api.on("GET", "/auth/v1/user", 200, `{"id": "u1", "email": "me@example.com"}`)
	api.on("GET", "/auth/v1/user", 401, `{"msg": "invalid JWT"}`)
	p := c.Auth()
	ctx := context.Background()

	u, err := p.User(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Bearer tok", api.last(t).Header.Get("Authorization"))

	u, err = p.User(ctx, "revoked")
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = p.User(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestSignOutIgnoresMissingSession(t *testing.T) {
	c, api := setupClient(t)
	api.on("POST", "/auth/v1/logout", 401, `{"msg": "no session"}`)
	api.on("POST", "/auth/v1/logout", 500, `{"msg": "boom"}`)
	p := c.Auth()

	assert.NoError(t, p.SignOut(context.Background(), "tok"))
	assert.Error(t, p.SignOut(context.Background(), "tok"))
	assert.NoError(t, p.SignOut(context.Background(), ""))
}
