package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/subscriptions"
)

func TestSubscriptionHandlers_List(t *testing.T) {
	env := newTestEnv(t)
	var got subscriptions.Filter
	env.subscriptions.listFunc = func(filter subscriptions.Filter) ([]*subscriptions.Subscription, error) {
		got = filter
		return []*subscriptions.Subscription{}, nil
	}

	rec := env.do(t, http.MethodGet, "/api/subscription?rso_id=20", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got.UserID)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, int64(20), *got.GroupID)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/subscription?user_id=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/subscription", nil, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubscriptionHandlers_Subscribe(t *testing.T) {
	env := newTestEnv(t)
	env.subscriptions.subscribeFunc = func(perms *permissions.Resolver, orgID, groupID int64) (*subscriptions.Subscription, error) {
		if groupID == 21 {
			return nil, apierrors.ErrUserAlreadySubscribedToRso
		}
		return &subscriptions.Subscription{ID: 50, UserID: perms.UserID(), GroupID: groupID}, nil
	}

	rec := env.do(t, http.MethodPost, "/api/subscription", SubscribeRequest{UniversityID: 5, RsoID: 20}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sub subscriptions.Subscription
	decode(t, rec, &sub)
	assert.Equal(t, int64(1), sub.UserID)

	rec = env.do(t, http.MethodPost, "/api/subscription", SubscribeRequest{UniversityID: 5, RsoID: 21}, true)
	assert.Equal(t, 701, decodeError(t, rec).ErrorCode)

	rec = env.do(t, http.MethodPost, "/api/subscription", SubscribeRequest{RsoID: 20}, true)
	assert.Equal(t, []interface{}{"university_id"}, decodeError(t, rec).Raw)
}

func TestSubscriptionHandlers_Unsubscribe(t *testing.T) {
	env := newTestEnv(t)
	env.subscriptions.unsubscribeFunc = func(actorID, id int64) error {
		if id == 51 {
			return apierrors.ErrInvalidPermissionForAction
		}
		return nil
	}

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/subscription/50", nil, true).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/api/subscription/51", nil, true).Code)
}
