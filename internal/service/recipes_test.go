package service_test

import (
	"encoding/base64"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db/dbtest"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

type kitchen struct {
	author, reader *db.User
	g              *db.MeasurementUnit
	salt, potato   *db.Ingredient
	lunch, dinner  *db.Tag
}

func newKitchen(t *testing.T, e *env) *kitchen {
	t.Helper()
	g := dbtest.Unit(t, e.store, "g")
	return &kitchen{
		author: dbtest.User(t, e.store, "author"),
		reader: dbtest.User(t, e.store, "reader"),
		g:      g,
		salt:   dbtest.Ingredient(t, e.store, "salt", g),
		potato: dbtest.Ingredient(t, e.store, "potato", g),
		lunch:  dbtest.Tag(t, e.store, "lunch"),
		dinner: dbtest.Tag(t, e.store, "dinner"),
	}
}

func (k *kitchen) soup() service.RecipeInput {
	return service.RecipeInput{
		Name:        "Soup",
		Text:        "Boil it.",
		CookingTime: 10,
		Image:       "recipes/images/soup.png",
		TagIDs:      []uint64{k.lunch.ID},
		Ingredients: []service.IngredientSpec{{IngredientID: k.potato.ID, Amount: 200}},
	}
}

func intPtr(v int) *int {
	return &v
}

func TestCreateRecipe(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	k := newKitchen(t, e)

	view, err := e.recipes.Create(ctx, k.author, k.soup())
	require.NoError(t, err)
	assert.Equal(t, "Soup", view.Recipe.Name)
	assert.Equal(t, k.author.ID, view.Author.ID)
	require.Len(t, view.Recipe.Tags, 1)
	assert.Equal(t, "lunch", view.Recipe.Tags[0].Slug)
	require.Len(t, view.Recipe.Ingredients, 1)
	assert.Equal(t, 200, view.Recipe.Ingredients[0].Amount)
	assert.Equal(t, "potato", view.Recipe.Ingredients[0].Ingredient.Name)
	assert.Equal(t, "g", view.Recipe.Ingredients[0].MeasurementUnit.Name)

	t.Run("anonymous read", func(t *testing.T) {
		got, err := e.recipes.Read(ctx, view.Recipe.ID, nil)
		require.NoError(t, err)
		assert.False(t, got.IsFavorited)
		assert.False(t, got.IsInShoppingCart)
		assert.False(t, got.Author.IsSubscribed)
		assert.EqualValues(t, 1, e.count(t, &db.RecipeIngredient{}, "recipe_id = ?", view.Recipe.ID))
	})

	t.Run("flags for the viewer", func(t *testing.T) {
		_, err := e.relations.Add(ctx, service.KindFavorite, k.reader, view.Recipe.ID, -1)
		require.NoError(t, err)
		_, err = e.relations.Add(ctx, service.KindSubscription, k.reader, k.author.ID, -1)
		require.NoError(t, err)

		got, err := e.recipes.Read(ctx, view.Recipe.ID, k.reader)
		require.NoError(t, err)
		assert.True(t, got.IsFavorited)
		assert.False(t, got.IsInShoppingCart)
		assert.True(t, got.Author.IsSubscribed)
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := e.recipes.Read(ctx, 999, nil)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestCreateRecipeRejects(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	k := newKitchen(t, e)

	cases := map[string]struct {
		mutate func(in *service.RecipeInput)
		kind   apperr.Kind
	}{
		"cooking time below one": {
			mutate: func(in *service.RecipeInput) { in.CookingTime = 0 },
			kind:   apperr.KindValidation,
		},
		"negative amount": {
			mutate: func(in *service.RecipeInput) { in.Ingredients[0].Amount = -1 },
			kind:   apperr.KindValidation,
		},
		"unknown tag": {
			mutate: func(in *service.RecipeInput) { in.TagIDs = []uint64{999} },
			kind:   apperr.KindNotFound,
		},
		"unknown ingredient": {
			mutate: func(in *service.RecipeInput) { in.Ingredients[0].IngredientID = 999 },
			kind:   apperr.KindNotFound,
		},
		"ingredient listed twice": {
			mutate: func(in *service.RecipeInput) {
				in.Ingredients = append(in.Ingredients, service.IngredientSpec{IngredientID: k.potato.ID, Amount: 1})
			},
			kind: apperr.KindConflict,
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			in := k.soup()
			c.mutate(&in)
			_, err := e.recipes.Create(ctx, k.author, in)
			assert.True(t, apperr.Is(err, c.kind), "got %v", err)
		})
	}

	assert.Zero(t, e.count(t, &db.Recipe{}, "author_id = ?", k.author.ID))
	assert.Zero(t, e.count(t, &db.RecipeIngredient{}, "1 = 1"))

	t.Run("repeated tag ids collapse", func(t *testing.T) {
		in := k.soup()
		in.TagIDs = []uint64{k.lunch.ID, k.lunch.ID}
		view, err := e.recipes.Create(ctx, k.author, in)
		require.NoError(t, err)
		assert.Len(t, view.Recipe.Tags, 1)
	})
}

func TestUpdateRecipe(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	k := newKitchen(t, e)

	in := k.soup()
	in.Ingredients = append(in.Ingredients, service.IngredientSpec{IngredientID: k.salt.ID, Amount: 5})
	created, err := e.recipes.Create(ctx, k.author, in)
	require.NoError(t, err)
	id := created.Recipe.ID
	potatoRow := created.Recipe.Ingredients[0]

	t.Run("only the author", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, id, k.reader, service.RecipePatch{CookingTime: intPtr(20)})
		assert.ErrorIs(t, err, service.ErrNotAuthor)
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, 999, k.author, service.RecipePatch{})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("cooking time below one keeps the prior value", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, id, k.author, service.RecipePatch{CookingTime: intPtr(0)})
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		got, err := e.recipes.Read(ctx, id, nil)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Recipe.CookingTime)
	})

	t.Run("scalars only", func(t *testing.T) {
		name := "Borscht"
		got, err := e.recipes.Update(ctx, id, k.author, service.RecipePatch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Borscht", got.Recipe.Name)
		assert.Equal(t, "Boil it.", got.Recipe.Text)
		assert.Len(t, got.Recipe.Tags, 1)
		assert.Len(t, got.Recipe.Ingredients, 2)
	})

	t.Run("ingredients are reconciled", func(t *testing.T) {
		got, err := e.recipes.Update(ctx, id, k.author, service.RecipePatch{
			Ingredients: []service.IngredientSpec{{IngredientID: k.potato.ID, Amount: 300}},
		})
		require.NoError(t, err)
		require.Len(t, got.Recipe.Ingredients, 1)
		row := got.Recipe.Ingredients[0]
		assert.Equal(t, potatoRow.ID, row.ID)
		assert.Equal(t, 300, row.Amount)
		assert.Zero(t, e.count(t, &db.RecipeIngredient{}, "recipe_id = ? AND ingredient_id = ?", id, k.salt.ID))
	})

	t.Run("tags are replaced", func(t *testing.T) {
		got, err := e.recipes.Update(ctx, id, k.author, service.RecipePatch{TagIDs: []uint64{k.dinner.ID}})
		require.NoError(t, err)
		require.Len(t, got.Recipe.Tags, 1)
		assert.Equal(t, "dinner", got.Recipe.Tags[0].Slug)

		got, err = e.recipes.Update(ctx, id, k.author, service.RecipePatch{TagIDs: []uint64{}})
		require.NoError(t, err)
		assert.Empty(t, got.Recipe.Tags)
	})

	t.Run("failed update rolls back", func(t *testing.T) {
		_, err := e.recipes.Update(ctx, id, k.author, service.RecipePatch{
			Text:        func() *string { s := "changed"; return &s }(),
			Ingredients: []service.IngredientSpec{{IngredientID: 999, Amount: 1}},
		})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))

		got, err := e.recipes.Read(ctx, id, nil)
		require.NoError(t, err)
		assert.Equal(t, "Boil it.", got.Recipe.Text)
		assert.Len(t, got.Recipe.Ingredients, 1)
	})
}

func TestDeleteRecipe(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	k := newKitchen(t, e)

	image, err := e.media.SaveDataURI("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")))
	require.NoError(t, err)

	in := k.soup()
	in.Image = image
	created, err := e.recipes.Create(ctx, k.author, in)
	require.NoError(t, err)
	id := created.Recipe.ID
	_, err = e.relations.Add(ctx, service.KindShoppingCart, k.reader, id, -1)
	require.NoError(t, err)

	err = e.recipes.Delete(ctx, id, k.reader)
	assert.ErrorIs(t, err, service.ErrNotAuthor)

	require.NoError(t, e.recipes.Delete(ctx, id, k.author))
	assert.Zero(t, e.count(t, &db.Recipe{}, "id = ?", id))
	assert.Zero(t, e.count(t, &db.RecipeIngredient{}, "recipe_id = ?", id))
	assert.Zero(t, e.count(t, &db.ShoppingCartEntry{}, "recipe_id = ?", id))

	_, err = os.Stat(filepath.Join(e.media.Root(), filepath.FromSlash(image)))
	assert.True(t, os.IsNotExist(err))

	err = e.recipes.Delete(ctx, id, k.author)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListRecipes(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	k := newKitchen(t, e)
	other := dbtest.User(t, e.store, "other")

	soup, err := e.recipes.Create(ctx, k.author, k.soup())
	require.NoError(t, err)

	stewIn := k.soup()
	stewIn.Name = "Stew"
	stewIn.TagIDs = []uint64{k.dinner.ID}
	stew, err := e.recipes.Create(ctx, k.author, stewIn)
	require.NoError(t, err)

	pieIn := k.soup()
	pieIn.Name = "Pie"
	pieIn.TagIDs = nil
	pie, err := e.recipes.Create(ctx, other, pieIn)
	require.NoError(t, err)

	_, err = e.relations.Add(ctx, service.KindFavorite, k.reader, stew.Recipe.ID, -1)
	require.NoError(t, err)
	_, err = e.relations.Add(ctx, service.KindShoppingCart, k.reader, soup.Recipe.ID, -1)
	require.NoError(t, err)

	names := func(p *service.Paged[service.RecipeView]) []string {
		out := make([]string, 0, len(p.Results))
		for _, v := range p.Results {
			out = append(out, v.Recipe.Name)
		}
		return out
	}

	t.Run("newest first", func(t *testing.T) {
		page, err := e.recipes.List(ctx, nil, service.RecipeFilter{}, service.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Count)
		assert.Equal(t, []string{"Pie", "Stew", "Soup"}, names(page))
	})

	t.Run("paging", func(t *testing.T) {
		page, err := e.recipes.List(ctx, nil, service.RecipeFilter{}, service.Page{Number: 2, Size: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Count)
		assert.Equal(t, []string{"Soup"}, names(page))
	})

	t.Run("oversized page request", func(t *testing.T) {
		page, err := e.recipes.List(ctx, nil, service.RecipeFilter{}, service.Page{Number: math.MaxInt, Size: math.MaxInt})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Count)
		assert.Empty(t, page.Results)
		assert.Equal(t, 50, page.Page.Size)
		assert.Equal(t, math.MaxInt32/50+1, page.Page.Number)

		page, err = e.recipes.List(ctx, nil, service.RecipeFilter{}, service.Page{Size: 4000000000000})
		require.NoError(t, err)
		assert.Equal(t, []string{"Pie", "Stew", "Soup"}, names(page))
	})

	t.Run("by author", func(t *testing.T) {
		page, err := e.recipes.List(ctx, nil, service.RecipeFilter{AuthorID: other.ID}, service.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Pie"}, names(page))
		assert.Equal(t, pie.Recipe.ID, page.Results[0].Recipe.ID)
	})

	t.Run("by any tag", func(t *testing.T) {
		page, err := e.recipes.List(ctx, nil, service.RecipeFilter{Tags: []string{"lunch", "dinner"}}, service.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Count)
		assert.Equal(t, []string{"Stew", "Soup"}, names(page))
	})

	t.Run("favorited", func(t *testing.T) {
		page, err := e.recipes.List(ctx, k.reader, service.RecipeFilter{Favorited: true}, service.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Stew"}, names(page))
		assert.True(t, page.Results[0].IsFavorited)
	})

	t.Run("in shopping cart", func(t *testing.T) {
		page, err := e.recipes.List(ctx, k.reader, service.RecipeFilter{InShoppingCart: true}, service.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Soup"}, names(page))
		assert.True(t, page.Results[0].IsInShoppingCart)
	})

	t.Run("anonymous viewers ignore relation filters", func(t *testing.T) {
		page, err := e.recipes.List(ctx, nil, service.RecipeFilter{Favorited: true}, service.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Count)
	})
}
