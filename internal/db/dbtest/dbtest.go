// Package dbtest opens throwaway in-memory stores and seeds fixtures for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
)

var seq int64

// New returns a migrated store over a private in-memory SQLite database. The pool is limited
// to one connection: every connection to ":memory:" would otherwise see its own database.
func New(t testing.TB) *db.Store {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return db.NewStore(gdb)
}

func next() int64 {
	return atomic.AddInt64(&seq, 1)
}

func User(t testing.TB, s *db.Store, username string) *db.User {
	t.Helper()
	u := db.User{
		Email:     fmt.Sprintf("%s@example.com", username),
		Username:  username,
		FirstName: "First",
		LastName:  "Last",
		Password:  "hash",
		Token:     fmt.Sprintf("token-%s-%d", username, next()),
	}
	require.NoError(t, s.DB(t.Context()).Create(&u).Error)
	return &u
}

func Unit(t testing.TB, s *db.Store, name string) *db.MeasurementUnit {
	t.Helper()
	m := db.MeasurementUnit{Named: db.Named{Name: name}}
	require.NoError(t, s.DB(t.Context()).Create(&m).Error)
	return &m
}

func Tag(t testing.TB, s *db.Store, slug string) *db.Tag {
	t.Helper()
	tag := db.Tag{Named: db.Named{Name: slug}, Slug: slug, Color: "#49B64E"}
	require.NoError(t, s.DB(t.Context()).Create(&tag).Error)
	return &tag
}

func Ingredient(t testing.TB, s *db.Store, name string, unit *db.MeasurementUnit) *db.Ingredient {
	t.Helper()
	i := db.Ingredient{Named: db.Named{Name: name}, MeasurementUnitID: unit.ID}
	require.NoError(t, s.DB(t.Context()).Create(&i).Error)
	return &i
}

// Recipe stores a bare recipe without tags or ingredients.
func Recipe(t testing.TB, s *db.Store, author *db.User, name string) *db.Recipe {
	t.Helper()
	r := db.Recipe{
		Named:       db.Named{Name: name},
		AuthorID:    author.ID,
		Text:        "text",
		CookingTime: 5,
		Image:       "recipes/images/test.png",
	}
	require.NoError(t, s.DB(t.Context()).Omit("Author", "Tags", "Ingredients").Create(&r).Error)
	return &r
}
