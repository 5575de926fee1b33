package service

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/constraint"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
)

const catalogCacheSize = 1024

// Catalog serves tags, ingredients and measurement units. Rows are never modified once
// created, so lookups by id are cached.
type Catalog struct {
	store       *db.Store
	tags        *lru.Cache[uint64, db.Tag]
	ingredients *lru.Cache[uint64, db.Ingredient]
	logger      *zap.SugaredLogger
}

func NewCatalog(store *db.Store, l *zap.SugaredLogger) (*Catalog, error) {
	tags, err := lru.New[uint64, db.Tag](catalogCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create tag cache")
	}
	ingredients, err := lru.New[uint64, db.Ingredient](catalogCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create ingredient cache")
	}
	return &Catalog{
		store:       store,
		tags:        tags,
		ingredients: ingredients,
		logger:      l,
	}, nil
}

func (s *Catalog) ListTags(ctx context.Context) ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	if err := s.store.DB(ctx).Order("id").Find(&tags).Error; err != nil {
		return nil, errors.Wrap(err, "find tags")
	}
	return tags, nil
}

func (s *Catalog) GetTag(ctx context.Context, id uint64) (*db.Tag, error) {
	if tag, ok := s.tags.Get(id); ok {
		return &tag, nil
	}
	tag := db.Tag{}
	if err := s.store.DB(ctx).First(&tag, id).Error; err != nil {
		return nil, notFound(err, "tag %d not found", id)
	}
	s.tags.Add(id, tag)
	return &tag, nil
}

// ListIngredients returns ingredients whose name starts with prefix, case-insensitively.
func (s *Catalog) ListIngredients(ctx context.Context, prefix string) ([]db.Ingredient, error) {
	q := s.store.DB(ctx).Preload("MeasurementUnit").Order("name").Order("id")
	if prefix != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", likePrefix(prefix))
	}
	ingredients := make([]db.Ingredient, 0)
	if err := q.Find(&ingredients).Error; err != nil {
		return nil, errors.Wrap(err, "find ingredients")
	}
	return ingredients, nil
}

func (s *Catalog) GetIngredient(ctx context.Context, id uint64) (*db.Ingredient, error) {
	if ingredient, ok := s.ingredients.Get(id); ok {
		return &ingredient, nil
	}
	ingredient := db.Ingredient{}
	if err := s.store.DB(ctx).Preload("MeasurementUnit").First(&ingredient, id).Error; err != nil {
		return nil, notFound(err, "ingredient %d not found", id)
	}
	s.ingredients.Add(id, ingredient)
	return &ingredient, nil
}

// CreateUnit returns the unit with the given name, creating it when missing.
func (s *Catalog) CreateUnit(ctx context.Context, name string) (*db.MeasurementUnit, error) {
	unit := db.MeasurementUnit{}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		return unitByName(tx, name, &unit)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create unit")
	}
	return &unit, nil
}

func (s *Catalog) CreateTag(ctx context.Context, name, slug, color string) (*db.Tag, error) {
	tag := db.Tag{Named: db.Named{Name: name}, Slug: slug, Color: color}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		taken, err := db.Exists(tx, &db.Tag{}, "slug = ?", slug)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("tag with slug %q already exists", slug)
		}
		return constraint.Unique(tx.Create(&tag).Error, "tag with slug %q already exists", slug)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create tag")
	}
	s.logger.Infow("tag created", "tag_id", tag.ID, "slug", slug)
	return &tag, nil
}

// CreateIngredient adds an ingredient measured in the named unit. The same name with the
// same unit is a conflict.
func (s *Catalog) CreateIngredient(ctx context.Context, name, unitName string) (*db.Ingredient, error) {
	ingredient := db.Ingredient{Named: db.Named{Name: name}}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		unit := db.MeasurementUnit{}
		if err := unitByName(tx, unitName, &unit); err != nil {
			return err
		}
		taken, err := db.Exists(tx, &db.Ingredient{}, "name = ? AND measurement_unit_id = ?", name, unit.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("ingredient %q measured in %q already exists", name, unitName)
		}
		ingredient.MeasurementUnitID = unit.ID
		ingredient.MeasurementUnit = &unit
		return tx.Omit("MeasurementUnit").Create(&ingredient).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ingredient")
	}
	return &ingredient, nil
}

func unitByName(tx *gorm.DB, name string, unit *db.MeasurementUnit) error {
	res := tx.Where("name = ?", name).Limit(1).Find(unit)
	if res.Error != nil {
		return errors.Wrap(res.Error, "find unit")
	}
	if res.RowsAffected != 0 {
		return nil
	}
	unit.Name = name
	return tx.Create(unit).Error
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.ToLower(prefix)) + "%"
}
