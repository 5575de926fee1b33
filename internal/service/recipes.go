package service

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/constraint"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
)

var ErrNotAuthor = apperr.Authorization("only the author may change this recipe")

// Media removes stored files that recipes no longer reference.
type Media interface {
	Remove(path string) error
}

type (
	IngredientSpec struct {
		IngredientID uint64
		Amount       int
	}

	RecipeInput struct {
		Name        string
		Text        string
		CookingTime int
		Image       string
		TagIDs      []uint64
		Ingredients []IngredientSpec
	}

	// RecipePatch changes only what is set. A nil slice leaves the set untouched, an empty
	// one clears it.
	RecipePatch struct {
		Name        *string
		Text        *string
		CookingTime *int
		Image       *string
		TagIDs      []uint64
		Ingredients []IngredientSpec
	}

	RecipeFilter struct {
		AuthorID uint64
		// Tags matches recipes carrying any of the slugs.
		Tags           []string
		Favorited      bool
		InShoppingCart bool
	}

	RecipeView struct {
		Recipe           db.Recipe
		Author           UserView
		IsFavorited      bool
		IsInShoppingCart bool
	}
)

type Recipes struct {
	store       *db.Store
	media       Media
	pageSize    int
	maxPageSize int
	logger      *zap.SugaredLogger
}

func NewRecipes(store *db.Store, media Media, cfg *config.Config, l *zap.SugaredLogger) *Recipes {
	return &Recipes{
		store:       store,
		media:       media,
		pageSize:    cfg.PageSize,
		maxPageSize: cfg.MaxPageSize,
		logger:      l,
	}
}

func (s *Recipes) Create(ctx context.Context, author *db.User, in RecipeInput) (*RecipeView, error) {
	recipe := db.Recipe{
		Named:       db.Named{Name: in.Name},
		AuthorID:    author.ID,
		Text:        in.Text,
		CookingTime: in.CookingTime,
		Image:       in.Image,
	}

	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		tagIDs, err := checkTags(tx, in.TagIDs)
		if err != nil {
			return err
		}
		rows, err := ingredientRows(tx, in.Ingredients)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return errors.Wrap(err, "insert recipe")
		}
		if err := db.ReplaceRecipeTags(tx, recipe.ID, tagIDs); err != nil {
			return err
		}
		for i := range rows {
			rows[i].RecipeID = recipe.ID
			if err := tx.Omit(clause.Associations).Create(&rows[i]).Error; err != nil {
				return constraint.Unique(err, "ingredient %d is listed more than once", rows[i].IngredientID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create recipe")
	}

	s.logger.Infow("recipe created", "recipe_id", recipe.ID, "author_id", author.ID)
	return s.Read(ctx, recipe.ID, author)
}

// Update applies the patch under a row lock on the recipe. Ingredients present in both the
// stored and the new set are updated in place.
func (s *Recipes) Update(ctx context.Context, id uint64, actor *db.User, p RecipePatch) (*RecipeView, error) {
	var replacedImage string

	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		recipe, err := lockOwned(tx, id, actor)
		if err != nil {
			return err
		}

		if p.Name != nil {
			recipe.Name = *p.Name
		}
		if p.Text != nil {
			recipe.Text = *p.Text
		}
		if p.CookingTime != nil {
			recipe.CookingTime = *p.CookingTime
		}
		if p.Image != nil && *p.Image != recipe.Image {
			replacedImage = recipe.Image
			recipe.Image = *p.Image
		}
		res := tx.Model(recipe).
			Select("name", "text", "cooking_time", "image", "updated_at").
			Updates(recipe)
		if res.Error != nil {
			return errors.Wrap(res.Error, "update recipe")
		}

		if p.TagIDs != nil {
			tagIDs, err := checkTags(tx, p.TagIDs)
			if err != nil {
				return err
			}
			if err := db.ReplaceRecipeTags(tx, recipe.ID, tagIDs); err != nil {
				return err
			}
		}

		if p.Ingredients != nil {
			rows, err := ingredientRows(tx, p.Ingredients)
			if err != nil {
				return err
			}
			if err := reconcileIngredients(tx, recipe.ID, rows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update recipe %d", id)
	}

	s.removeImage(replacedImage)
	return s.Read(ctx, id, actor)
}

func (s *Recipes) Delete(ctx context.Context, id uint64, actor *db.User) error {
	var image string
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		recipe, err := lockOwned(tx, id, actor)
		if err != nil {
			return err
		}
		image = recipe.Image
		return db.DeleteRecipe(tx, recipe.ID)
	})
	if err != nil {
		return errors.Wrapf(err, "delete recipe %d", id)
	}

	s.logger.Infow("recipe deleted", "recipe_id", id, "author_id", actor.ID)
	s.removeImage(image)
	return nil
}

// Read returns the recipe as seen by viewer, which may be nil for anonymous requests.
func (s *Recipes) Read(ctx context.Context, id uint64, viewer *db.User) (*RecipeView, error) {
	views, err := recipeViews(s.store.DB(ctx), viewer, []uint64{id})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("recipe %d not found", id)
	}
	return &views[0], nil
}

// List returns recipes newest first. The favorite and shopping cart filters apply only to
// authenticated viewers.
func (s *Recipes) List(ctx context.Context, viewer *db.User, f RecipeFilter, page Page) (*Paged[RecipeView], error) {
	page = page.normalize(s.pageSize, s.maxPageSize)
	tx := s.store.DB(ctx)

	where, err := f.where(viewer)
	if err != nil {
		return nil, err
	}

	sql, args, err := squirrel.Select("COUNT(*)").From("recipes r").Where(where).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}
	var total int64
	if err := tx.Raw(sql, args...).Scan(&total).Error; err != nil {
		return nil, errors.Wrap(err, "count recipes")
	}

	sql, args, err = squirrel.
		Select("r.id").From("recipes r").
		Where(where).
		OrderBy("r.id DESC").
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}
	ids := make([]uint64, 0)
	if err := tx.Raw(sql, args...).Scan(&ids).Error; err != nil {
		return nil, errors.Wrap(err, "list recipes")
	}

	views, err := recipeViews(tx, viewer, ids)
	if err != nil {
		return nil, err
	}
	return &Paged[RecipeView]{Page: page, Count: total, Results: views}, nil
}

func (f RecipeFilter) where(viewer *db.User) (squirrel.And, error) {
	where := squirrel.And{}
	if f.AuthorID != 0 {
		where = append(where, squirrel.Eq{"r.author_id": f.AuthorID})
	}
	if len(f.Tags) != 0 {
		sql, args, err := squirrel.
			Select("1").From("recipe_tags rt").
			Join("tags t ON t.id = rt.tag_id").
			Where("rt.recipe_id = r.id").
			Where(squirrel.Eq{"t.slug": f.Tags}).
			ToSql()
		if err != nil {
			return nil, errors.Wrap(err, "build tag filter")
		}
		where = append(where, squirrel.Expr("EXISTS ("+sql+")", args...))
	}
	if viewer == nil {
		return where, nil
	}
	if f.Favorited {
		where = append(where, squirrel.Expr(
			"EXISTS (SELECT 1 FROM favorite_entries fe WHERE fe.recipe_id = r.id AND fe.user_id = ?)", viewer.ID))
	}
	if f.InShoppingCart {
		where = append(where, squirrel.Expr(
			"EXISTS (SELECT 1 FROM shopping_cart_entries sc WHERE sc.recipe_id = r.id AND sc.user_id = ?)", viewer.ID))
	}
	return where, nil
}

func (s *Recipes) removeImage(path string) {
	if path == "" || s.media == nil {
		return
	}
	if err := s.media.Remove(path); err != nil {
		s.logger.Errorw("remove recipe image", "path", path, "error", err)
	}
}

// lockOwned loads the recipe for update and checks that actor wrote it.
func lockOwned(tx *gorm.DB, id uint64, actor *db.User) (*db.Recipe, error) {
	recipe := db.Recipe{}
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&recipe, id)
	if res.Error != nil {
		return nil, notFound(res.Error, "recipe %d not found", id)
	}
	if actor == nil || recipe.AuthorID != actor.ID {
		return nil, ErrNotAuthor
	}
	return &recipe, nil
}

func checkTags(tx *gorm.DB, ids []uint64) ([]uint64, error) {
	ids = uniqueIDs(ids)
	missing, err := missingIDs(tx, &db.Tag{}, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) != 0 {
		return nil, apperr.NotFound("tag %d not found", missing[0])
	}
	return ids, nil
}

// ingredientRows turns specs into unsaved join rows, snapshotting each ingredient's unit.
func ingredientRows(tx *gorm.DB, specs []IngredientSpec) ([]db.RecipeIngredient, error) {
	ids := make([]uint64, 0, len(specs))
	seen := make(map[uint64]struct{}, len(specs))
	for _, spec := range specs {
		if _, ok := seen[spec.IngredientID]; ok {
			return nil, apperr.Conflict("ingredient %d is listed more than once", spec.IngredientID)
		}
		if spec.Amount < 0 {
			return nil, apperr.Validation("amount must not be less than 0")
		}
		seen[spec.IngredientID] = struct{}{}
		ids = append(ids, spec.IngredientID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ingredients := make([]db.Ingredient, 0, len(ids))
	if err := tx.Where("id IN ?", ids).Find(&ingredients).Error; err != nil {
		return nil, errors.Wrap(err, "find ingredients")
	}
	units := make(map[uint64]uint64, len(ingredients))
	for _, i := range ingredients {
		units[i.ID] = i.MeasurementUnitID
	}

	rows := make([]db.RecipeIngredient, 0, len(specs))
	for _, spec := range specs {
		unitID, ok := units[spec.IngredientID]
		if !ok {
			return nil, apperr.NotFound("ingredient %d not found", spec.IngredientID)
		}
		rows = append(rows, db.RecipeIngredient{
			IngredientID:      spec.IngredientID,
			Amount:            spec.Amount,
			MeasurementUnitID: unitID,
		})
	}
	return rows, nil
}

// reconcileIngredients makes rows the ingredient set of the recipe: matching rows are updated,
// new ones inserted and the rest deleted.
func reconcileIngredients(tx *gorm.DB, recipeID uint64, rows []db.RecipeIngredient) error {
	existing := make([]db.RecipeIngredient, 0)
	if err := tx.Where("recipe_id = ?", recipeID).Find(&existing).Error; err != nil {
		return errors.Wrap(err, "find recipe ingredients")
	}
	byIngredient := make(map[uint64]db.RecipeIngredient, len(existing))
	for _, row := range existing {
		byIngredient[row.IngredientID] = row
	}

	keep := make(map[uint64]struct{}, len(rows))
	for _, row := range rows {
		keep[row.IngredientID] = struct{}{}
	}
	stale := make([]uint64, 0)
	for _, row := range existing {
		if _, ok := keep[row.IngredientID]; !ok {
			stale = append(stale, row.ID)
		}
	}
	if len(stale) != 0 {
		if err := tx.Delete(&db.RecipeIngredient{}, stale).Error; err != nil {
			return errors.Wrap(err, "delete recipe ingredients")
		}
	}

	for _, row := range rows {
		cur, ok := byIngredient[row.IngredientID]
		if !ok {
			row.RecipeID = recipeID
			if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
				return constraint.Unique(err, "ingredient %d is listed more than once", row.IngredientID)
			}
			continue
		}
		cur.Amount = row.Amount
		cur.MeasurementUnitID = row.MeasurementUnitID
		res := tx.Model(&cur).Select("amount", "measurement_unit_id", "updated_at").Updates(&cur)
		if res.Error != nil {
			return errors.Wrap(res.Error, "update recipe ingredient")
		}
	}
	return nil
}

// recipeViews loads full recipes in the order of ids along with the viewer's flags.
func recipeViews(tx *gorm.DB, viewer *db.User, ids []uint64) ([]RecipeView, error) {
	if len(ids) == 0 {
		return []RecipeView{}, nil
	}

	recipes := make([]db.Recipe, 0, len(ids))
	res := tx.
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.id") }).
		Preload("Ingredients", func(tx *gorm.DB) *gorm.DB { return tx.Order("recipe_ingredients.id") }).
		Preload("Ingredients.Ingredient").
		Preload("Ingredients.MeasurementUnit").
		Where("id IN ?", ids).
		Find(&recipes)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find recipes")
	}
	byID := make(map[uint64]db.Recipe, len(recipes))
	authorIDs := make([]uint64, 0, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
		authorIDs = append(authorIDs, r.AuthorID)
	}

	authors, err := userViews(tx, viewer, uniqueIDs(authorIDs))
	if err != nil {
		return nil, err
	}
	authorByID := make(map[uint64]UserView, len(authors))
	for _, a := range authors {
		authorByID[a.ID] = a
	}

	var viewerID uint64
	if viewer != nil {
		viewerID = viewer.ID
	}
	favorited, err := members(tx, KindFavorite, viewerID, ids)
	if err != nil {
		return nil, err
	}
	inCart, err := members(tx, KindShoppingCart, viewerID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]RecipeView, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}
		if r.Tags == nil {
			r.Tags = []db.Tag{}
		}
		if r.Ingredients == nil {
			r.Ingredients = []db.RecipeIngredient{}
		}
		out = append(out, RecipeView{
			Recipe:           r,
			Author:           authorByID[r.AuthorID],
			IsFavorited:      favorited[id],
			IsInShoppingCart: inCart[id],
		})
	}
	return out, nil
}
