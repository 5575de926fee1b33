package transport

import (
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/models"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

func imageURL(path string) string {
	if path == "" {
		return ""
	}
	return mediaPrefix + path
}

func userResp(v service.UserView) models.UserResp {
	return models.UserResp{
		ID:           v.ID,
		Email:        v.Email,
		Username:     v.Username,
		FirstName:    v.FirstName,
		LastName:     v.LastName,
		IsSubscribed: v.IsSubscribed,
	}
}

func tagResp(t db.Tag) models.TagResp {
	return models.TagResp{
		ID:    t.ID,
		Name:  t.Name,
		Slug:  t.Slug,
		Color: t.Color,
	}
}

func ingredientResp(i db.Ingredient) models.IngredientResp {
	resp := models.IngredientResp{ID: i.ID, Name: i.Name}
	if i.MeasurementUnit != nil {
		resp.MeasurementUnit = i.MeasurementUnit.Name
	}
	return resp
}

func recipeResp(v service.RecipeView) models.RecipeResp {
	tags := make([]models.TagResp, len(v.Recipe.Tags))
	for i := range v.Recipe.Tags {
		tags[i] = tagResp(v.Recipe.Tags[i])
	}

	ingredients := make([]models.RecipeIngredientResp, len(v.Recipe.Ingredients))
	for i, row := range v.Recipe.Ingredients {
		ingredients[i] = models.RecipeIngredientResp{
			ID:     row.IngredientID,
			Amount: row.Amount,
		}
		if row.Ingredient != nil {
			ingredients[i].Name = row.Ingredient.Name
		}
		if row.MeasurementUnit != nil {
			ingredients[i].MeasurementUnit = row.MeasurementUnit.Name
		}
	}

	return models.RecipeResp{
		ID:               v.Recipe.ID,
		Tags:             tags,
		Author:           userResp(v.Author),
		Ingredients:      ingredients,
		IsFavorited:      v.IsFavorited,
		IsInShoppingCart: v.IsInShoppingCart,
		Name:             v.Recipe.Name,
		Image:            imageURL(v.Recipe.Image),
		Text:             v.Recipe.Text,
		CookingTime:      v.Recipe.CookingTime,
	}
}

func recipeShortResp(b service.RecipeBrief) models.RecipeShortResp {
	return models.RecipeShortResp{
		ID:          b.ID,
		Name:        b.Name,
		Image:       imageURL(b.Image),
		CookingTime: b.CookingTime,
	}
}

func subscriptionResp(a service.AuthorCard) models.SubscriptionResp {
	recipes := make([]models.RecipeShortResp, len(a.Recipes))
	for i := range a.Recipes {
		recipes[i] = recipeShortResp(a.Recipes[i])
	}
	return models.SubscriptionResp{
		UserResp:     userResp(a.UserView),
		Recipes:      recipes,
		RecipesCount: a.RecipesCount,
	}
}

// targetResp renders a relation list element: a short recipe or an author card.
func targetResp(t service.Target) interface{} {
	if t.Author != nil {
		return subscriptionResp(*t.Author)
	}
	return recipeShortResp(*t.Recipe)
}
