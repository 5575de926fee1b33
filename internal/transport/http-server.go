package transport

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/constraint"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/media"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/models"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

const (
	userKey = "user"

	mediaPrefix = "/media/"
)

type (
	CustomValidator struct{}

	Deps struct {
		fx.In

		Config    *config.Config
		Users     *service.Users
		Catalog   *service.Catalog
		Relations *service.Relations
		Recipes   *service.Recipes
		Shopping  *service.ShoppingList
		Media     *media.Store
		Logger    *zap.SugaredLogger
	}

	HTTPServer struct {
		e         *echo.Echo
		users     *service.Users
		catalog   *service.Catalog
		relations *service.Relations
		recipes   *service.Recipes
		shopping  *service.ShoppingList
		media     *media.Store
		logger    *zap.SugaredLogger
	}
)

var Module = fx.Provide(NewHTTPServer)

func NewHTTPServer(lc fx.Lifecycle, d Deps) *HTTPServer {
	instance := New(d)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := d.Config.Host + ":" + d.Config.Port
				if err := instance.e.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
					d.Logger.Fatalw("http server failed", "listen", listen, "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("Stopping HTTP server.")
			return instance.e.Shutdown(ctx)
		},
	})

	return instance
}

// New builds the router without starting it.
func New(d Deps) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	instance := HTTPServer{
		e:         e,
		users:     d.Users,
		catalog:   d.Catalog,
		relations: d.Relations,
		recipes:   d.Recipes,
		shopping:  d.Shopping,
		media:     d.Media,
		logger:    d.Logger,
	}

	e.Validator = &CustomValidator{}
	e.HTTPErrorHandler = instance.errorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			d.Logger.Infow("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(instance.AuthMiddleware)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	if d.Media != nil {
		e.Static(mediaPrefix, d.Media.Root())
	}

	api := e.Group("/api")

	usersG := api.Group("/users")
	usersG.POST("/", instance.UserCreate)
	usersG.GET("/", instance.UserList)
	usersG.GET("/me/", instance.UserMe, RequireUser)
	usersG.POST("/set_password/", instance.SetPassword, RequireUser)
	usersG.GET("/subscriptions/", instance.RelationList(service.KindSubscription), RequireUser)
	usersG.GET("/:id/", instance.UserGet)
	usersG.POST("/:id/subscribe/", instance.RelationAdd(service.KindSubscription), RequireUser)
	usersG.DELETE("/:id/subscribe/", instance.RelationRemove(service.KindSubscription), RequireUser)

	authG := api.Group("/auth/token")
	authG.POST("/login/", instance.Login)
	authG.POST("/logout/", instance.Logout, RequireUser)

	api.GET("/tags/", instance.TagList)
	api.GET("/tags/:id/", instance.TagGet)
	api.GET("/ingredients/", instance.IngredientList)
	api.GET("/ingredients/:id/", instance.IngredientGet)

	recipesG := api.Group("/recipes")
	recipesG.GET("/", instance.RecipeList)
	recipesG.POST("/", instance.RecipeCreate, RequireUser)
	recipesG.GET("/favorites/", instance.RelationList(service.KindFavorite), RequireUser)
	recipesG.GET("/shopping_cart/", instance.RelationList(service.KindShoppingCart), RequireUser)
	recipesG.GET("/download_shopping_cart/", instance.DownloadShoppingCart, RequireUser)
	recipesG.GET("/:id/", instance.RecipeGet)
	recipesG.PATCH("/:id/", instance.RecipeUpdate, RequireUser)
	recipesG.DELETE("/:id/", instance.RecipeDelete, RequireUser)
	recipesG.POST("/:id/favorite/", instance.RelationAdd(service.KindFavorite), RequireUser)
	recipesG.DELETE("/:id/favorite/", instance.RelationRemove(service.KindFavorite), RequireUser)
	recipesG.POST("/:id/shopping_cart/", instance.RelationAdd(service.KindShoppingCart), RequireUser)
	recipesG.DELETE("/:id/shopping_cart/", instance.RelationRemove(service.KindShoppingCart), RequireUser)

	return &instance
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// AuthMiddleware resolves the token, if any, to a user. Requests without a token stay
// anonymous; a token that matches nobody is rejected.
func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := tokenFromRequest(c.Request())
		if token == "" {
			return next(c)
		}
		user, err := s.users.Authenticate(c.Request().Context(), token)
		if err != nil {
			return err
		}
		c.Set(userKey, user)
		return next(c)
	}
}

func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if GetUserFromContext(c) == nil {
			return apperr.Authentication("authentication credentials were not provided")
		}
		return next(c)
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Token") {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get("X-Token")
}

func (s *HTTPServer) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	resp := models.ErrorResp{Message: http.StatusText(http.StatusInternalServerError)}

	var httpErr *echo.HTTPError
	if appErr, ok := apperr.From(err); ok {
		status = statusOf(appErr.Kind)
		resp = models.ErrorResp{Kind: string(appErr.Kind), Message: appErr.Message}
	} else if errors.As(err, &httpErr) {
		status = httpErr.Code
		resp.Message = http.StatusText(status)
		if msg, ok := httpErr.Message.(string); ok {
			resp.Message = msg
		}
	} else {
		s.logger.Errorw("request failed", "method", c.Request().Method, "uri", c.Request().RequestURI, "error", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, resp)
	}
	if werr != nil {
		s.logger.Errorw("write error response", "error", werr)
	}
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	return constraint.Check(i)
}

func BindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("malformed request body")
	}
	return c.Validate(v)
}

// GetUserFromContext returns the authenticated user or nil for anonymous requests.
func GetUserFromContext(c echo.Context) *db.User {
	user, _ := c.Get(userKey).(*db.User)
	return user
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid path param '%s'", name)
	}
	return v, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validation("invalid query param '%s'", name)
	}
	return v, nil
}

func queryFlag(c echo.Context, name string) bool {
	v := c.QueryParam(name)
	return v == "1" || strings.EqualFold(v, "true")
}

func pageFromQuery(c echo.Context) (service.Page, error) {
	number, err := queryInt(c, "page", 1)
	if err != nil {
		return service.Page{}, err
	}
	size, err := queryInt(c, "limit", 0)
	if err != nil {
		return service.Page{}, err
	}
	return service.Page{Number: number, Size: size}, nil
}

// recipesLimitFromQuery returns -1 when the parameter is absent so the service applies its
// configured default.
func recipesLimitFromQuery(c echo.Context) (int, error) {
	return queryInt(c, "recipes_limit", -1)
}

// paginate wraps results with links to the neighbouring pages. page is the page the service
// served, with defaults and limits applied.
func paginate[T any](c echo.Context, page service.Page, count int64, results []T) models.PageResp[T] {
	resp := models.PageResp[T]{Count: count, Results: results}
	if int64(page.Number)*int64(page.Size) < count {
		resp.Next = pageLink(c, page.Number+1)
	}
	if page.Number > 1 {
		resp.Previous = pageLink(c, page.Number-1)
	}
	return resp
}

func pageLink(c echo.Context, number int) *string {
	r := c.Request()
	q := r.URL.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u := url.URL{
		Scheme:   c.Scheme(),
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	link := u.String()
	return &link
}
