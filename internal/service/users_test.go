package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db/dbtest"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

func registration(username string) service.Registration {
	return service.Registration{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Ivan",
		LastName:  "Petrov",
		Password:  "secret-pass",
	}
}

func TestUsersAuth(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()

	user, err := e.users.Register(ctx, registration("cook"))
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "secret-pass", user.Password)

	t.Run("login and authenticate", func(t *testing.T) {
		token, err := e.users.Login(ctx, "cook@example.com", "secret-pass")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		got, err := e.users.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		require.NoError(t, e.users.Logout(ctx, got))
		_, err = e.users.Authenticate(ctx, token)
		assert.True(t, apperr.Is(err, apperr.KindAuthentication))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := e.users.Login(ctx, "cook@example.com", "nope")
		assert.ErrorIs(t, err, service.ErrLoginFailed)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := e.users.Login(ctx, "ghost@example.com", "secret-pass")
		assert.ErrorIs(t, err, service.ErrLoginFailed)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := e.users.Authenticate(ctx, "")
		assert.True(t, apperr.Is(err, apperr.KindAuthentication))
	})

	t.Run("duplicate email", func(t *testing.T) {
		r := registration("other")
		r.Email = "cook@example.com"
		_, err := e.users.Register(ctx, r)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("duplicate username", func(t *testing.T) {
		r := registration("cook")
		r.Email = "cook2@example.com"
		_, err := e.users.Register(ctx, r)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("bad username", func(t *testing.T) {
		_, err := e.users.Register(ctx, registration("bad name!"))
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("set password", func(t *testing.T) {
		err := e.users.SetPassword(ctx, user, "wrong", "next-pass")
		assert.ErrorIs(t, err, service.ErrPasswordDoesNotMatch)

		require.NoError(t, e.users.SetPassword(ctx, user, "secret-pass", "next-pass"))
		_, err = e.users.Login(ctx, "cook@example.com", "next-pass")
		assert.NoError(t, err)
	})
}

func TestUsersGetAndList(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()

	a := dbtest.User(t, e.store, "a")
	b := dbtest.User(t, e.store, "b")
	c := dbtest.User(t, e.store, "c")
	require.NoError(t, e.store.DB(ctx).Create(&db.Subscribe{AuthorID: a.ID, FollowerID: b.ID}).Error)

	t.Run("get", func(t *testing.T) {
		got, err := e.users.Get(ctx, a.ID, b)
		require.NoError(t, err)
		assert.Equal(t, "a", got.Username)
		assert.True(t, got.IsSubscribed)

		got, err = e.users.Get(ctx, a.ID, nil)
		require.NoError(t, err)
		assert.False(t, got.IsSubscribed)

		_, err = e.users.Get(ctx, c.ID+100, nil)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("list", func(t *testing.T) {
		page, err := e.users.List(ctx, b, service.Page{Number: 1, Size: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Count)
		require.Len(t, page.Results, 2)
		assert.Equal(t, a.ID, page.Results[0].ID)
		assert.True(t, page.Results[0].IsSubscribed)
		assert.False(t, page.Results[1].IsSubscribed)

		page, err = e.users.List(ctx, b, service.Page{Number: 2, Size: 2})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, c.ID, page.Results[0].ID)
	})
}
