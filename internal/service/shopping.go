package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
)

type ShoppingLine struct {
	Name   string
	Unit   string
	Amount int64
}

type ShoppingList struct {
	store  *db.Store
	logger *zap.SugaredLogger
}

func NewShoppingList(store *db.Store, l *zap.SugaredLogger) *ShoppingList {
	return &ShoppingList{
		store:  store,
		logger: l,
	}
}

// Lines sums ingredient amounts over every recipe in the user's cart, grouped by ingredient
// name and unit.
func (s *ShoppingList) Lines(ctx context.Context, user *db.User) ([]ShoppingLine, error) {
	sql, args, err := squirrel.
		Select("i.name AS name", "mu.name AS unit", "SUM(ri.amount) AS amount").
		From("shopping_cart_entries sc").
		Join("recipe_ingredients ri ON ri.recipe_id = sc.recipe_id").
		Join("ingredients i ON i.id = ri.ingredient_id").
		Join("measurement_units mu ON mu.id = ri.measurement_unit_id").
		Where(squirrel.Eq{"sc.user_id": user.ID}).
		GroupBy("i.name", "mu.name").
		OrderBy("i.name", "mu.name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	lines := make([]ShoppingLine, 0)
	if err := s.store.DB(ctx).Raw(sql, args...).Scan(&lines).Error; err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	return lines, nil
}

// Download renders the shopping list as plain text, one ingredient per line.
func (s *ShoppingList) Download(ctx context.Context, user *db.User) (string, error) {
	lines, err := s.Lines(ctx, user)
	if err != nil {
		return "", err
	}

	b := strings.Builder{}
	b.WriteString("Shopping list\n\n")
	if len(lines) == 0 {
		b.WriteString("The cart is empty.\n")
	}
	for i, l := range lines {
		fmt.Fprintf(&b, "%d. %s (%s): %d\n", i+1, l.Name, l.Unit, l.Amount)
	}
	return b.String(), nil
}
