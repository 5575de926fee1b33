package service_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db/dbtest"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/media"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

type env struct {
	store     *db.Store
	media     *media.Store
	users     *service.Users
	catalog   *service.Catalog
	relations *service.Relations
	recipes   *service.Recipes
	shopping  *service.ShoppingList
}

func newEnv(t *testing.T) *env {
	t.Helper()

	l := zap.NewNop().Sugar()
	cfg := &config.Config{
		PageSize:     6,
		MaxPageSize:  50,
		RecipesLimit: 10,
		MaxRecipes:   50,
		BcryptCost:   bcrypt.MinCost,
	}
	store := dbtest.New(t)

	m, err := media.NewStore(t.TempDir(), l)
	require.NoError(t, err)
	catalog, err := service.NewCatalog(store, l)
	require.NoError(t, err)

	return &env{
		store:     store,
		media:     m,
		users:     service.NewUsers(store, cfg, l),
		catalog:   catalog,
		relations: service.NewRelations(store, cfg, l),
		recipes:   service.NewRecipes(store, m, cfg, l),
		shopping:  service.NewShoppingList(store, l),
	}
}

func (e *env) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.store.DB(t.Context()).Model(model).Where(query, args...).Count(&n).Error)
	return n
}
