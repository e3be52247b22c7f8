package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/events"
	"github.com/platinummonkey/campus/pkg/groups"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/orgs"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/subscriptions"
	"github.com/platinummonkey/campus/pkg/users"
)

const testToken = "campus_testtoken"

type mockUsers struct {
	signupFunc       func(req users.SignupRequest) (*users.User, error)
	authenticateFunc func(email, password string) (*users.User, error)
	getFunc          func(id int64) (*users.User, error)
	updateFunc       func(actorID, id int64, req users.UpdateRequest) (*users.User, error)
}

func (m *mockUsers) Signup(ctx context.Context, req users.SignupRequest) (*users.User, error) {
	if m.signupFunc != nil {
		return m.signupFunc(req)
	}
	return &users.User{ID: 99, Email: req.Email}, nil
}

func (m *mockUsers) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	if m.authenticateFunc != nil {
		return m.authenticateFunc(email, password)
	}
	return nil, apierrors.ErrFailedToLogin
}

func (m *mockUsers) Get(ctx context.Context, id int64) (*users.User, error) {
	if m.getFunc != nil {
		return m.getFunc(id)
	}
	return &users.User{ID: id, Email: "student@example.edu"}, nil
}

func (m *mockUsers) Update(ctx context.Context, actorID, id int64, req users.UpdateRequest) (*users.User, error) {
	if m.updateFunc != nil {
		return m.updateFunc(actorID, id, req)
	}
	return &users.User{ID: id}, nil
}

// mockSessions accepts testToken for user 1
type mockSessions struct {
	createFunc func(userID int64, ttl time.Duration) (string, *auth.Session, error)
	revokeFunc func(token string) error
	revoked    []string
}

func (m *mockSessions) Create(ctx context.Context, userID int64, ttl time.Duration) (string, *auth.Session, error) {
	if m.createFunc != nil {
		return m.createFunc(userID, ttl)
	}
	return "campus_new", &auth.Session{ID: 1, UserID: userID, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (m *mockSessions) Validate(ctx context.Context, token string) (*auth.Session, error) {
	if token != testToken {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Session{ID: 1, UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockSessions) Revoke(ctx context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	if m.revokeFunc != nil {
		return m.revokeFunc(token)
	}
	return nil
}

type mockLoader struct {
	memberships []*membership.Membership
	err         error
}

func (m *mockLoader) FindActiveByUser(ctx context.Context, userID int64) ([]*membership.Membership, error) {
	return m.memberships, m.err
}

type mockOrgs struct {
	createFunc     func(creatorID int64, req orgs.CreateRequest) (*orgs.Organization, error)
	getFunc        func(id int64) (*orgs.Organization, error)
	existsFunc     func(id int64) (bool, error)
	listFunc       func(filter orgs.ListFilter) ([]*orgs.Organization, error)
	updateFunc     func(perms *permissions.Resolver, id int64, req orgs.UpdateRequest) (*orgs.Organization, error)
	deactivateFunc func(perms *permissions.Resolver, id int64) (*orgs.Organization, error)
	setImageFunc   func(perms *permissions.Resolver, id int64, url string) (*orgs.Organization, error)
}

func (m *mockOrgs) Create(ctx context.Context, creatorID int64, req orgs.CreateRequest) (*orgs.Organization, error) {
	if m.createFunc != nil {
		return m.createFunc(creatorID, req)
	}
	return &orgs.Organization{ID: 10, Name: req.Name, CreatedByID: creatorID}, nil
}

func (m *mockOrgs) Get(ctx context.Context, id int64) (*orgs.Organization, error) {
	if m.getFunc != nil {
		return m.getFunc(id)
	}
	return &orgs.Organization{ID: id, Name: "State"}, nil
}

func (m *mockOrgs) Exists(ctx context.Context, id int64) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(id)
	}
	return true, nil
}

func (m *mockOrgs) List(ctx context.Context, filter orgs.ListFilter) ([]*orgs.Organization, error) {
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return []*orgs.Organization{}, nil
}

func (m *mockOrgs) Update(ctx context.Context, perms *permissions.Resolver, id int64, req orgs.UpdateRequest) (*orgs.Organization, error) {
	if m.updateFunc != nil {
		return m.updateFunc(perms, id, req)
	}
	return &orgs.Organization{ID: id}, nil
}

func (m *mockOrgs) Deactivate(ctx context.Context, perms *permissions.Resolver, id int64) (*orgs.Organization, error) {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(perms, id)
	}
	return &orgs.Organization{ID: id}, nil
}

func (m *mockOrgs) SetImage(ctx context.Context, perms *permissions.Resolver, id int64, url string) (*orgs.Organization, error) {
	if m.setImageFunc != nil {
		return m.setImageFunc(perms, id, url)
	}
	return &orgs.Organization{ID: id, ImageURL: &url}, nil
}

type mockRsos struct {
	createFunc     func(perms *permissions.Resolver, req groups.CreateRequest) (*groups.Created, error)
	getFunc        func(orgID, id int64) (*groups.Detail, error)
	listFunc       func(orgID int64, name string, active storage.ActiveFilter) ([]*groups.Group, error)
	updateFunc     func(perms *permissions.Resolver, orgID, id int64, req groups.UpdateRequest) (*groups.Group, error)
	deactivateFunc func(perms *permissions.Resolver, orgID, id int64) (*groups.CascadeResult, error)
}

func (m *mockRsos) Create(ctx context.Context, perms *permissions.Resolver, req groups.CreateRequest) (*groups.Created, error) {
	if m.createFunc != nil {
		return m.createFunc(perms, req)
	}
	return &groups.Created{Group: &groups.Group{ID: 20, OrganizationID: req.OrganizationID, Name: req.Name}}, nil
}

func (m *mockRsos) Get(ctx context.Context, orgID, id int64) (*groups.Detail, error) {
	if m.getFunc != nil {
		return m.getFunc(orgID, id)
	}
	return &groups.Detail{Group: &groups.Group{ID: id, OrganizationID: orgID}}, nil
}

func (m *mockRsos) List(ctx context.Context, orgID int64, name string, active storage.ActiveFilter) ([]*groups.Group, error) {
	if m.listFunc != nil {
		return m.listFunc(orgID, name, active)
	}
	return []*groups.Group{}, nil
}

func (m *mockRsos) Update(ctx context.Context, perms *permissions.Resolver, orgID, id int64, req groups.UpdateRequest) (*groups.Group, error) {
	if m.updateFunc != nil {
		return m.updateFunc(perms, orgID, id, req)
	}
	return &groups.Group{ID: id, OrganizationID: orgID}, nil
}

func (m *mockRsos) Deactivate(ctx context.Context, perms *permissions.Resolver, orgID, id int64) (*groups.CascadeResult, error) {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(perms, orgID, id)
	}
	return &groups.CascadeResult{Group: &groups.Group{ID: id}}, nil
}

type mockEvents struct {
	createFunc         func(perms *permissions.Resolver, req events.CreateRequest) (*events.Event, error)
	listFunc           func(perms *permissions.Resolver, filter events.ListFilter) ([]*events.Event, error)
	showFunc           func(perms *permissions.Resolver, orgID, id int64) (*events.Event, error)
	destroyFunc        func(perms *permissions.Resolver, orgID, id int64) error
	setImageFunc       func(perms *permissions.Resolver, orgID, id int64, url string) (*events.Event, error)
	createCommentFunc  func(perms *permissions.Resolver, orgID, eventID int64, message string) (*events.Comment, error)
	listCommentsFunc   func(perms *permissions.Resolver, orgID, eventID int64) ([]*events.Comment, error)
	updateCommentFunc  func(perms *permissions.Resolver, orgID, eventID, id int64, message string) (*events.Comment, error)
	destroyCommentFunc func(perms *permissions.Resolver, orgID, eventID, id int64) error
}

func (m *mockEvents) Create(ctx context.Context, perms *permissions.Resolver, req events.CreateRequest) (*events.Event, error) {
	if m.createFunc != nil {
		return m.createFunc(perms, req)
	}
	return &events.Event{ID: 30, OrganizationID: req.OrganizationID, GroupID: req.GroupID, Privacy: req.Privacy}, nil
}

func (m *mockEvents) List(ctx context.Context, perms *permissions.Resolver, filter events.ListFilter) ([]*events.Event, error) {
	if m.listFunc != nil {
		return m.listFunc(perms, filter)
	}
	return []*events.Event{}, nil
}

func (m *mockEvents) Show(ctx context.Context, perms *permissions.Resolver, orgID, id int64) (*events.Event, error) {
	if m.showFunc != nil {
		return m.showFunc(perms, orgID, id)
	}
	return &events.Event{ID: id, OrganizationID: orgID, GroupID: 20}, nil
}

func (m *mockEvents) Destroy(ctx context.Context, perms *permissions.Resolver, orgID, id int64) error {
	if m.destroyFunc != nil {
		return m.destroyFunc(perms, orgID, id)
	}
	return nil
}

func (m *mockEvents) SetImage(ctx context.Context, perms *permissions.Resolver, orgID, id int64, url string) (*events.Event, error) {
	if m.setImageFunc != nil {
		return m.setImageFunc(perms, orgID, id, url)
	}
	return &events.Event{ID: id, ImageURL: &url}, nil
}

func (m *mockEvents) CreateComment(ctx context.Context, perms *permissions.Resolver, orgID, eventID int64, message string) (*events.Comment, error) {
	if m.createCommentFunc != nil {
		return m.createCommentFunc(perms, orgID, eventID, message)
	}
	return &events.Comment{ID: 40, EventID: eventID, CreatedByID: perms.UserID(), Message: message}, nil
}

func (m *mockEvents) ListComments(ctx context.Context, perms *permissions.Resolver, orgID, eventID int64) ([]*events.Comment, error) {
	if m.listCommentsFunc != nil {
		return m.listCommentsFunc(perms, orgID, eventID)
	}
	return []*events.Comment{}, nil
}

func (m *mockEvents) UpdateComment(ctx context.Context, perms *permissions.Resolver, orgID, eventID, id int64, message string) (*events.Comment, error) {
	if m.updateCommentFunc != nil {
		return m.updateCommentFunc(perms, orgID, eventID, id, message)
	}
	return &events.Comment{ID: id, EventID: eventID, Message: message}, nil
}

func (m *mockEvents) DestroyComment(ctx context.Context, perms *permissions.Resolver, orgID, eventID, id int64) error {
	if m.destroyCommentFunc != nil {
		return m.destroyCommentFunc(perms, orgID, eventID, id)
	}
	return nil
}

type mockSubscriptions struct {
	subscribeFunc   func(perms *permissions.Resolver, orgID, groupID int64) (*subscriptions.Subscription, error)
	listFunc        func(filter subscriptions.Filter) ([]*subscriptions.Subscription, error)
	unsubscribeFunc func(actorID, id int64) error
}

func (m *mockSubscriptions) Subscribe(ctx context.Context, perms *permissions.Resolver, orgID, groupID int64) (*subscriptions.Subscription, error) {
	if m.subscribeFunc != nil {
		return m.subscribeFunc(perms, orgID, groupID)
	}
	return &subscriptions.Subscription{ID: 50, UserID: perms.UserID(), GroupID: groupID}, nil
}

func (m *mockSubscriptions) List(ctx context.Context, filter subscriptions.Filter) ([]*subscriptions.Subscription, error) {
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return []*subscriptions.Subscription{}, nil
}

func (m *mockSubscriptions) Unsubscribe(ctx context.Context, actorID, id int64) error {
	if m.unsubscribeFunc != nil {
		return m.unsubscribeFunc(actorID, id)
	}
	return nil
}

type mockImages struct {
	putFunc func(prefix string, content []byte) (string, error)
	calls   int
}

func (m *mockImages) PutImage(ctx context.Context, prefix string, content []byte) (string, error) {
	m.calls++
	if m.putFunc != nil {
		return m.putFunc(prefix, content)
	}
	return "https://cdn.example.edu/images/" + prefix + "/x.png", nil
}

// testEnv is a server over mocks. User 1 authenticates with testToken and
// holds the memberships in loader.
type testEnv struct {
	users         *mockUsers
	sessions      *mockSessions
	loader        *mockLoader
	orgs          *mockOrgs
	rsos          *mockRsos
	events        *mockEvents
	subscriptions *mockSubscriptions
	images        *mockImages
	metrics       *observability.Metrics
	server        *Server
}

func newTestEnv(t *testing.T, memberships ...*membership.Membership) *testEnv {
	t.Helper()
	env := &testEnv{
		users:         &mockUsers{},
		sessions:      &mockSessions{},
		loader:        &mockLoader{memberships: memberships},
		orgs:          &mockOrgs{},
		rsos:          &mockRsos{},
		events:        &mockEvents{},
		subscriptions: &mockSubscriptions{},
		images:        &mockImages{},
		metrics:       observability.NewMetrics(prometheus.NewRegistry()),
	}
	env.server = NewServer(Services{
		Users:         env.users,
		Sessions:      env.sessions,
		Memberships:   env.loader,
		Universities:  env.orgs,
		Rsos:          env.rsos,
		Events:        env.events,
		Subscriptions: env.subscriptions,
	}, Options{
		Logger:         observability.NewLogger(observability.ErrorLevel, io.Discard),
		Metrics:        env.metrics,
		AllowedOrigins: []string{"*"},
		SessionTTL:     time.Hour,
		Images:         env.images,
	})
	return env
}

// do sends a request. A non-nil body is JSON encoded.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

// upload sends content as the multipart "image" field
func (e *testEnv) upload(t *testing.T, path string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "logo.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func orgMembership(orgID int64, tier roles.Tier) *membership.Membership {
	return &membership.Membership{UserID: 1, OrganizationID: orgID, Tier: tier}
}

func groupMembership(orgID, groupID int64, tier roles.Tier) *membership.Membership {
	return &membership.Membership{UserID: 1, OrganizationID: orgID, GroupID: &groupID, Tier: tier}
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}
