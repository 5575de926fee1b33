package service

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/constraint"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
)

// Kind names a membership relation between a principal and a target.
type Kind string

const (
	KindFavorite     Kind = "favorite"
	KindShoppingCart Kind = "shopping_cart"
	KindSubscription Kind = "subscription"
)

type targetType int

const (
	targetRecipe targetType = iota
	targetUser
)

// descriptor is everything the generic add/remove/list code needs to know about a kind.
type descriptor struct {
	table           string
	principalColumn string
	targetColumn    string
	target          targetType
	forbidSelf      bool
	duplicate       string
	absent          string
	newRow          func(principalID, targetID uint64) interface{}
}

var descriptors = map[Kind]descriptor{
	KindFavorite: {
		table:           "favorite_entries",
		principalColumn: "user_id",
		targetColumn:    "recipe_id",
		target:          targetRecipe,
		duplicate:       "recipe is already in favorites",
		absent:          "recipe is not in favorites",
		newRow: func(principalID, targetID uint64) interface{} {
			return &db.FavoriteEntry{UserRecipe: db.UserRecipe{UserID: principalID, RecipeID: targetID}}
		},
	},
	KindShoppingCart: {
		table:           "shopping_cart_entries",
		principalColumn: "user_id",
		targetColumn:    "recipe_id",
		target:          targetRecipe,
		duplicate:       "recipe is already in the shopping cart",
		absent:          "recipe is not in the shopping cart",
		newRow: func(principalID, targetID uint64) interface{} {
			return &db.ShoppingCartEntry{UserRecipe: db.UserRecipe{UserID: principalID, RecipeID: targetID}}
		},
	},
	KindSubscription: {
		table:           "subscribes",
		principalColumn: "follower_id",
		targetColumn:    "author_id",
		target:          targetUser,
		forbidSelf:      true,
		duplicate:       "already subscribed to this author",
		absent:          "not subscribed to this author",
		newRow: func(principalID, targetID uint64) interface{} {
			return &db.Subscribe{AuthorID: targetID, FollowerID: principalID}
		},
	},
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := descriptors[k]; !ok {
		return "", apperr.Validation("unknown relation kind %q", s)
	}
	return k, nil
}

func (k Kind) descriptor() (descriptor, error) {
	d, ok := descriptors[k]
	if !ok {
		return descriptor{}, apperr.Validation("unknown relation kind %q", string(k))
	}
	return d, nil
}

func (d descriptor) pair() string {
	return fmt.Sprintf("%s = ? AND %s = ?", d.principalColumn, d.targetColumn)
}

func (d descriptor) targetModel() (interface{}, string) {
	if d.target == targetUser {
		return &db.User{}, "user"
	}
	return &db.Recipe{}, "recipe"
}

type (
	RecipeBrief struct {
		ID          uint64
		Name        string
		Image       string
		CookingTime int
	}

	AuthorCard struct {
		UserView
		RecipesCount int64
		Recipes      []RecipeBrief
	}

	// Target is one element of a relation list: a recipe for favorite and shopping_cart,
	// an author for subscription.
	Target struct {
		Recipe *RecipeBrief
		Author *AuthorCard
	}
)

type Relations struct {
	store           *db.Store
	pageSize        int
	maxPageSize     int
	recipesLimit    int
	maxRecipesLimit int
	logger          *zap.SugaredLogger
}

func NewRelations(store *db.Store, cfg *config.Config, l *zap.SugaredLogger) *Relations {
	return &Relations{
		store:           store,
		pageSize:        cfg.PageSize,
		maxPageSize:     cfg.MaxPageSize,
		recipesLimit:    cfg.RecipesLimit,
		maxRecipesLimit: cfg.MaxRecipes,
		logger:          l,
	}
}

// Add moves the (principal, target) pair from absent to present. A present pair is a conflict.
// recipesLimit caps the recipes shown for author targets; negative means the configured default
// and values above the configured maximum are lowered to it.
func (s *Relations) Add(ctx context.Context, kind Kind, principal *db.User, targetID uint64, recipesLimit int) (*Target, error) {
	d, err := kind.descriptor()
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		model, name := d.targetModel()
		ok, err := db.Exists(tx, model, "id = ?", targetID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("%s %d not found", name, targetID)
		}
		if d.forbidSelf {
			if err := constraint.NotSelf(targetID, principal.ID); err != nil {
				return err
			}
		}

		present, err := db.Exists(tx, d.newRow(0, 0), d.pair(), principal.ID, targetID)
		if err != nil {
			return err
		}
		if present {
			return apperr.Conflict("%s", d.duplicate)
		}

		if err := tx.Create(d.newRow(principal.ID, targetID)).Error; err != nil {
			if constraint.IsCheckViolation(err) {
				return apperr.Validation(constraint.MsgSelfSubscription)
			}
			return constraint.Unique(err, "%s", d.duplicate)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "add %s", kind)
	}

	targets, err := s.targets(s.store.DB(ctx), d, principal, []uint64{targetID}, s.limit(recipesLimit))
	if err != nil {
		return nil, err
	}
	// the target may have been deleted since the pair was committed
	if len(targets) == 0 {
		_, name := d.targetModel()
		return nil, apperr.NotFound("%s %d not found", name, targetID)
	}
	return &targets[0], nil
}

// Remove moves the pair from present to absent. An absent pair is reported as NotFoundError.
func (s *Relations) Remove(ctx context.Context, kind Kind, principal *db.User, targetID uint64) error {
	d, err := kind.descriptor()
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		model, name := d.targetModel()
		ok, err := db.Exists(tx, model, "id = ?", targetID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("%s %d not found", name, targetID)
		}

		res := tx.Where(d.pair(), principal.ID, targetID).Delete(d.newRow(0, 0))
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("%s", d.absent)
		}
		return nil
	})
	return errors.Wrapf(err, "remove %s", kind)
}

// List returns the principal's targets of the given kind, earliest added first.
func (s *Relations) List(ctx context.Context, kind Kind, principal *db.User, page Page, recipesLimit int) (*Paged[Target], error) {
	d, err := kind.descriptor()
	if err != nil {
		return nil, err
	}
	page = page.normalize(s.pageSize, s.maxPageSize)
	tx := s.store.DB(ctx)

	var total int64
	if err := tx.Table(d.table).Where(d.principalColumn+" = ?", principal.ID).Count(&total).Error; err != nil {
		return nil, errors.Wrapf(err, "count %s", kind)
	}

	var ids []uint64
	res := tx.Table(d.table).
		Where(d.principalColumn+" = ?", principal.ID).
		Order("id").
		Offset(page.Offset()).
		Limit(page.Size).
		Pluck(d.targetColumn, &ids)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "list %s", kind)
	}

	targets, err := s.targets(tx, d, principal, ids, s.limit(recipesLimit))
	if err != nil {
		return nil, err
	}
	return &Paged[Target]{Page: page, Count: total, Results: targets}, nil
}

// Contains reports whether the pair is present.
func (s *Relations) Contains(ctx context.Context, kind Kind, principalID, targetID uint64) (bool, error) {
	members, err := s.Members(ctx, kind, principalID, []uint64{targetID})
	if err != nil {
		return false, err
	}
	return members[targetID], nil
}

// Members reports, for each target id, whether the pair with principalID is present.
// An anonymous principal (id 0) is a member of nothing.
func (s *Relations) Members(ctx context.Context, kind Kind, principalID uint64, targetIDs []uint64) (map[uint64]bool, error) {
	return members(s.store.DB(ctx), kind, principalID, targetIDs)
}

func members(tx *gorm.DB, kind Kind, principalID uint64, targetIDs []uint64) (map[uint64]bool, error) {
	d, err := kind.descriptor()
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]bool, len(targetIDs))
	if principalID == 0 || len(targetIDs) == 0 {
		return out, nil
	}
	var found []uint64
	res := tx.Table(d.table).
		Where(d.principalColumn+" = ?", principalID).
		Where(d.targetColumn+" IN ?", targetIDs).
		Pluck(d.targetColumn, &found)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "find %s members", kind)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (s *Relations) limit(recipesLimit int) int {
	if recipesLimit < 0 {
		return s.recipesLimit
	}
	return min(recipesLimit, s.maxRecipesLimit)
}

func (s *Relations) targets(tx *gorm.DB, d descriptor, viewer *db.User, ids []uint64, recipesLimit int) ([]Target, error) {
	out := make([]Target, 0, len(ids))
	if d.target == targetUser {
		cards, err := authorCards(tx, viewer, ids, recipesLimit)
		if err != nil {
			return nil, err
		}
		for i := range cards {
			out = append(out, Target{Author: &cards[i]})
		}
		return out, nil
	}

	briefs, err := recipeBriefs(tx, ids)
	if err != nil {
		return nil, err
	}
	for i := range briefs {
		out = append(out, Target{Recipe: &briefs[i]})
	}
	return out, nil
}

// recipeBriefs loads recipes in the order of ids.
func recipeBriefs(tx *gorm.DB, ids []uint64) ([]RecipeBrief, error) {
	if len(ids) == 0 {
		return []RecipeBrief{}, nil
	}
	recipes := make([]db.Recipe, 0, len(ids))
	if err := tx.Where("id IN ?", ids).Find(&recipes).Error; err != nil {
		return nil, errors.Wrap(err, "find recipes")
	}
	byID := make(map[uint64]db.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}
	out := make([]RecipeBrief, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, brief(r))
		}
	}
	return out, nil
}

func brief(r db.Recipe) RecipeBrief {
	return RecipeBrief{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

// authorCards loads users in the order of ids with their newest recipes, at most recipesLimit
// each, and their total recipe count.
func authorCards(tx *gorm.DB, viewer *db.User, ids []uint64, recipesLimit int) ([]AuthorCard, error) {
	if len(ids) == 0 {
		return []AuthorCard{}, nil
	}
	views, err := userViews(tx, viewer, ids)
	if err != nil {
		return nil, err
	}

	sql, args, err := squirrel.
		Select("author_id", "COUNT(*) AS total").
		From("recipes").
		Where(squirrel.Eq{"author_id": ids}).
		GroupBy("author_id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}
	var counts []struct {
		AuthorID uint64
		Total    int64
	}
	if err := tx.Raw(sql, args...).Scan(&counts).Error; err != nil {
		return nil, errors.Wrap(err, "count recipes")
	}
	totals := make(map[uint64]int64, len(counts))
	for _, c := range counts {
		totals[c.AuthorID] = c.Total
	}

	out := make([]AuthorCard, 0, len(views))
	for _, v := range views {
		card := AuthorCard{UserView: v, RecipesCount: totals[v.ID], Recipes: []RecipeBrief{}}
		if recipesLimit > 0 && card.RecipesCount > 0 {
			recipes := make([]db.Recipe, 0)
			res := tx.Where("author_id = ?", v.ID).Order("id DESC").Limit(recipesLimit).Find(&recipes)
			if res.Error != nil {
				return nil, errors.Wrap(res.Error, "find author recipes")
			}
			for _, r := range recipes {
				card.Recipes = append(card.Recipes, brief(r))
			}
		}
		out = append(out, card)
	}
	return out, nil
}
