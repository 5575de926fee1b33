package db

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Store owns the database handle. Operations that must see each other's writes take a
// *gorm.DB so they can run inside a transaction started by Transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB")
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB")
	}
	return sqlDB.Close()
}

// Exists reports whether a row of model matches the condition.
func Exists(tx *gorm.DB, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "count")
	}
	return count > 0, nil
}

func RecipeIngredients(tx *gorm.DB, recipeID uint64) ([]RecipeIngredient, error) {
	rows := make([]RecipeIngredient, 0)
	res := tx.Preload("Ingredient").Preload("MeasurementUnit").
		Where("recipe_id = ?", recipeID).
		Order("id").
		Find(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find recipe ingredients")
	}
	return rows, nil
}

func RecipeTags(tx *gorm.DB, recipeID uint64) ([]Tag, error) {
	tags := make([]Tag, 0)
	res := tx.Joins("JOIN recipe_tags ON recipe_tags.tag_id = tags.id").
		Where("recipe_tags.recipe_id = ?", recipeID).
		Order("tags.id").
		Find(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find recipe tags")
	}
	return tags, nil
}

// ReplaceRecipeTags makes tagIDs the complete tag set of the recipe.
func ReplaceRecipeTags(tx *gorm.DB, recipeID uint64, tagIDs []uint64) error {
	if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", recipeID).Error; err != nil {
		return errors.Wrap(err, "clear recipe tags")
	}
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, len(tagIDs))
	for i, id := range tagIDs {
		rows[i] = map[string]interface{}{"recipe_id": recipeID, "tag_id": id}
	}
	if err := tx.Table("recipe_tags").Create(rows).Error; err != nil {
		return errors.Wrap(err, "insert recipe tags")
	}
	return nil
}

// DeleteRecipe removes the recipe and every row referencing it.
func DeleteRecipe(tx *gorm.DB, id uint64) error {
	dependents := []struct {
		name  string
		model interface{}
	}{
		{"recipe ingredients", &RecipeIngredient{}},
		{"favorite entries", &FavoriteEntry{}},
		{"shopping cart entries", &ShoppingCartEntry{}},
	}
	for _, d := range dependents {
		if err := tx.Where("recipe_id = ?", id).Delete(d.model).Error; err != nil {
			return errors.Wrapf(err, "delete %s", d.name)
		}
	}
	if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", id).Error; err != nil {
		return errors.Wrap(err, "delete recipe tags")
	}

	res := tx.Delete(&Recipe{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete recipe")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUser removes the user, their recipes (with cascade) and every relation row they
// take part in.
func DeleteUser(tx *gorm.DB, id uint64) error {
	var recipeIDs []uint64
	if err := tx.Model(&Recipe{}).Where("author_id = ?", id).Pluck("id", &recipeIDs).Error; err != nil {
		return errors.Wrap(err, "find authored recipes")
	}
	for _, recipeID := range recipeIDs {
		if err := DeleteRecipe(tx, recipeID); err != nil {
			return err
		}
	}

	if err := tx.Where("user_id = ?", id).Delete(&FavoriteEntry{}).Error; err != nil {
		return errors.Wrap(err, "delete favorite entries")
	}
	if err := tx.Where("user_id = ?", id).Delete(&ShoppingCartEntry{}).Error; err != nil {
		return errors.Wrap(err, "delete shopping cart entries")
	}
	if err := tx.Where("author_id = ? OR follower_id = ?", id, id).Delete(&Subscribe{}).Error; err != nil {
		return errors.Wrap(err, "delete subscriptions")
	}

	res := tx.Delete(&User{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete user")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
