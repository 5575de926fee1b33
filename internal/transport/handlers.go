package transport

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/models"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

func (s *HTTPServer) UserCreate(c echo.Context) error {
	req := models.UserCreateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := s.users.Register(c.Request().Context(), service.Registration{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, models.UserCreateResp{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

func (s *HTTPServer) UserList(c echo.Context) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	res, err := s.users.List(c.Request().Context(), GetUserFromContext(c), page)
	if err != nil {
		return err
	}

	results := make([]models.UserResp, len(res.Results))
	for i := range res.Results {
		results[i] = userResp(res.Results[i])
	}
	return c.JSON(http.StatusOK, paginate(c, res.Page, res.Count, results))
}

func (s *HTTPServer) UserGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	view, err := s.users.Get(c.Request().Context(), id, GetUserFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResp(*view))
}

func (s *HTTPServer) UserMe(c echo.Context) error {
	user := GetUserFromContext(c)
	return c.JSON(http.StatusOK, userResp(service.UserView{User: *user}))
}

func (s *HTTPServer) SetPassword(c echo.Context) error {
	req := models.SetPasswordReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	err := s.users.SetPassword(c.Request().Context(), GetUserFromContext(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := models.TokenLoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	token, err := s.users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.TokenResp{AuthToken: token})
}

func (s *HTTPServer) Logout(c echo.Context) error {
	if err := s.users.Logout(c.Request().Context(), GetUserFromContext(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) TagList(c echo.Context) error {
	tags, err := s.catalog.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	resp := make([]models.TagResp, len(tags))
	for i := range tags {
		resp[i] = tagResp(tags[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) TagGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	tag, err := s.catalog.GetTag(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tagResp(*tag))
}

func (s *HTTPServer) IngredientList(c echo.Context) error {
	ingredients, err := s.catalog.ListIngredients(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return err
	}
	resp := make([]models.IngredientResp, len(ingredients))
	for i := range ingredients {
		resp[i] = ingredientResp(ingredients[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) IngredientGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	ingredient, err := s.catalog.GetIngredient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ingredientResp(*ingredient))
}

func (s *HTTPServer) RecipeList(c echo.Context) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}
	author, err := queryInt(c, "author", 0)
	if err != nil {
		return err
	}
	filter := service.RecipeFilter{
		AuthorID:       uint64(author),
		Tags:           c.QueryParams()["tags"],
		Favorited:      queryFlag(c, "is_favorited"),
		InShoppingCart: queryFlag(c, "is_in_shopping_cart"),
	}

	res, err := s.recipes.List(c.Request().Context(), GetUserFromContext(c), filter, page)
	if err != nil {
		return err
	}
	results := make([]models.RecipeResp, len(res.Results))
	for i := range res.Results {
		results[i] = recipeResp(res.Results[i])
	}
	return c.JSON(http.StatusOK, paginate(c, res.Page, res.Count, results))
}

func (s *HTTPServer) RecipeGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	view, err := s.recipes.Read(c.Request().Context(), id, GetUserFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recipeResp(*view))
}

func (s *HTTPServer) RecipeCreate(c echo.Context) error {
	req := models.RecipeCreateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	image, err := s.media.SaveDataURI(req.Image)
	if err != nil {
		return err
	}

	view, err := s.recipes.Create(c.Request().Context(), GetUserFromContext(c), service.RecipeInput{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		Image:       image,
		TagIDs:      req.Tags,
		Ingredients: ingredientSpecs(req.Ingredients),
	})
	if err != nil {
		s.discardImage(image)
		return err
	}
	return c.JSON(http.StatusCreated, recipeResp(*view))
}

func (s *HTTPServer) RecipeUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	req := models.RecipeUpdateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	patch := service.RecipePatch{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		TagIDs:      req.Tags,
		Ingredients: ingredientSpecs(req.Ingredients),
	}
	var image string
	if req.Image != nil {
		image, err = s.media.SaveDataURI(*req.Image)
		if err != nil {
			return err
		}
		patch.Image = &image
	}

	view, err := s.recipes.Update(c.Request().Context(), id, GetUserFromContext(c), patch)
	if err != nil {
		s.discardImage(image)
		return err
	}
	return c.JSON(http.StatusOK, recipeResp(*view))
}

func (s *HTTPServer) RecipeDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.recipes.Delete(c.Request().Context(), id, GetUserFromContext(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) DownloadShoppingCart(c echo.Context) error {
	text, err := s.shopping.Download(c.Request().Context(), GetUserFromContext(c))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="shopping_list.txt"`)
	return c.String(http.StatusOK, text)
}

func (s *HTTPServer) RelationAdd(kind service.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := GetAndParseParam(c, "id")
		if err != nil {
			return err
		}
		limit, err := recipesLimitFromQuery(c)
		if err != nil {
			return err
		}
		target, err := s.relations.Add(c.Request().Context(), kind, GetUserFromContext(c), id, limit)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, targetResp(*target))
	}
}

func (s *HTTPServer) RelationRemove(kind service.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := GetAndParseParam(c, "id")
		if err != nil {
			return err
		}
		if err := s.relations.Remove(c.Request().Context(), kind, GetUserFromContext(c), id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *HTTPServer) RelationList(kind service.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		page, err := pageFromQuery(c)
		if err != nil {
			return err
		}
		limit, err := recipesLimitFromQuery(c)
		if err != nil {
			return err
		}
		res, err := s.relations.List(c.Request().Context(), kind, GetUserFromContext(c), page, limit)
		if err != nil {
			return err
		}
		results := make([]interface{}, len(res.Results))
		for i := range res.Results {
			results[i] = targetResp(res.Results[i])
		}
		return c.JSON(http.StatusOK, paginate(c, res.Page, res.Count, results))
	}
}

func (s *HTTPServer) discardImage(path string) {
	if path == "" {
		return
	}
	if err := s.media.Remove(path); err != nil {
		s.logger.Errorw("discard uploaded image", "path", path, "error", err)
	}
}

func ingredientSpecs(reqs []models.RecipeIngredientReq) []service.IngredientSpec {
	if reqs == nil {
		return nil
	}
	specs := make([]service.IngredientSpec, len(reqs))
	for i, r := range reqs {
		specs[i] = service.IngredientSpec{IngredientID: r.ID, Amount: r.Amount}
	}
	return specs
}
