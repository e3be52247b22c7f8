package api

import (
	"context"
	"time"

	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/events"
	"github.com/platinummonkey/campus/pkg/groups"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/orgs"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/subscriptions"
	"github.com/platinummonkey/campus/pkg/users"
)

// UserService is the account surface the handlers use
type UserService interface {
	Signup(ctx context.Context, req users.SignupRequest) (*users.User, error)
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
	Update(ctx context.Context, actorID, id int64, req users.UpdateRequest) (*users.User, error)
}

// SessionService issues and checks bearer tokens
type SessionService interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, *auth.Session, error)
	Validate(ctx context.Context, token string) (*auth.Session, error)
	Revoke(ctx context.Context, token string) error
}

// GroupService manages RSOs
type GroupService interface {
	Create(ctx context.Context, perms *permissions.Resolver, req groups.CreateRequest) (*groups.Created, error)
	Get(ctx context.Context, organizationID, groupID int64) (*groups.Detail, error)
	List(ctx context.Context, organizationID int64, name string, active storage.ActiveFilter) ([]*groups.Group, error)
	Update(ctx context.Context, perms *permissions.Resolver, organizationID, groupID int64, req groups.UpdateRequest) (*groups.Group, error)
	Deactivate(ctx context.Context, perms *permissions.Resolver, organizationID, groupID int64) (*groups.CascadeResult, error)
}

// EventService manages events and their comments
type EventService interface {
	Create(ctx context.Context, perms *permissions.Resolver, req events.CreateRequest) (*events.Event, error)
	List(ctx context.Context, perms *permissions.Resolver, filter events.ListFilter) ([]*events.Event, error)
	Show(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64) (*events.Event, error)
	Destroy(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64) error
	SetImage(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64, imageURL string) (*events.Event, error)

	CreateComment(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64, message string) (*events.Comment, error)
	ListComments(ctx context.Context, perms *permissions.Resolver, organizationID, eventID int64) ([]*events.Comment, error)
	UpdateComment(ctx context.Context, perms *permissions.Resolver, organizationID, eventID, commentID int64, message string) (*events.Comment, error)
	DestroyComment(ctx context.Context, perms *permissions.Resolver, organizationID, eventID, commentID int64) error
}

// SubscriptionService manages RSO subscriptions
type SubscriptionService interface {
	Subscribe(ctx context.Context, perms *permissions.Resolver, organizationID, groupID int64) (*subscriptions.Subscription, error)
	List(ctx context.Context, filter subscriptions.Filter) ([]*subscriptions.Subscription, error)
	Unsubscribe(ctx context.Context, actorID, id int64) error
}

// Services bundles every backend the API talks to
type Services struct {
	Users         UserService
	Sessions      SessionService
	Memberships   membership.Loader
	Universities  orgs.Service
	Rsos          GroupService
	Events        EventService
	Subscriptions SubscriptionService
}
