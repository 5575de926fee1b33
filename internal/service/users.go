package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/constraint"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
)

var (
	ErrLoginFailed          = apperr.Authentication("unable to log in with provided credentials")
	ErrInvalidToken         = apperr.Authentication("invalid token")
	ErrPasswordDoesNotMatch = apperr.Validation("current password does not match")
)

type (
	Registration struct {
		Email     string
		Username  string
		FirstName string
		LastName  string
		Password  string
	}

	UserView struct {
		db.User
		IsSubscribed bool
	}
)

type Users struct {
	store       *db.Store
	pageSize    int
	maxPageSize int
	bcryptCost  int
	logger      *zap.SugaredLogger
}

func NewUsers(store *db.Store, cfg *config.Config, l *zap.SugaredLogger) *Users {
	return &Users{
		store:       store,
		pageSize:    cfg.PageSize,
		maxPageSize: cfg.MaxPageSize,
		bcryptCost:  cfg.BcryptCost,
		logger:      l,
	}
}

func (s *Users) Register(ctx context.Context, r Registration) (*db.User, error) {
	if r.Password == "" {
		return nil, apperr.Validation("password is required")
	}
	hash, err := s.bcryptGen(r.Password)
	if err != nil {
		return nil, errors.Wrap(err, "bcryptGen")
	}

	user := db.User{
		Email:     r.Email,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Password:  hash,
	}
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		taken, err := db.Exists(tx, &db.User{}, "email = ?", r.Email)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("a user with that email already exists")
		}
		taken, err = db.Exists(tx, &db.User{}, "username = ?", r.Username)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("a user with that username already exists")
		}
		return constraint.Unique(tx.Create(&user).Error, "a user with that email or username already exists")
	})
	if err != nil {
		return nil, errors.Wrap(err, "register")
	}

	s.logger.Infow("user registered", "user_id", user.ID)
	return &user, nil
}

// Login issues a fresh token, invalidating the previous one.
func (s *Users) Login(ctx context.Context, email, pass string) (string, error) {
	user := db.User{}
	res := s.store.DB(ctx).Where("email = ?", email).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return "", ErrLoginFailed
		}
		return "", res.Error
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return "", ErrLoginFailed
	}

	token := uuid.New().String()
	res = s.store.DB(ctx).Model(&user).Update("token", token)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "update token")
	}

	return token, nil
}

func (s *Users) Logout(ctx context.Context, user *db.User) error {
	res := s.store.DB(ctx).Model(user).Update("token", "")
	if res.Error != nil {
		return errors.Wrap(res.Error, "clear token")
	}
	return nil
}

// Authenticate resolves the principal owning token.
func (s *Users) Authenticate(ctx context.Context, token string) (*db.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user := db.User{}
	res := s.store.DB(ctx).Where("token = ?", token).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(res.Error, "find user by token")
	}
	return &user, nil
}

func (s *Users) Get(ctx context.Context, id uint64, viewer *db.User) (*UserView, error) {
	views, err := userViews(s.store.DB(ctx), viewer, []uint64{id})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("user %d not found", id)
	}
	return &views[0], nil
}

func (s *Users) List(ctx context.Context, viewer *db.User, page Page) (*Paged[UserView], error) {
	page = page.normalize(s.pageSize, s.maxPageSize)
	tx := s.store.DB(ctx)

	var total int64
	if err := tx.Model(&db.User{}).Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "count users")
	}
	var ids []uint64
	if err := tx.Model(&db.User{}).Order("id").Offset(page.Offset()).Limit(page.Size).Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	views, err := userViews(tx, viewer, ids)
	if err != nil {
		return nil, err
	}
	return &Paged[UserView]{Page: page, Count: total, Results: views}, nil
}

func (s *Users) SetPassword(ctx context.Context, user *db.User, current, next string) error {
	if next == "" {
		return apperr.Validation("new password is required")
	}
	if err := s.bcryptCheck(user.Password, current); err != nil {
		return ErrPasswordDoesNotMatch
	}
	hash, err := s.bcryptGen(next)
	if err != nil {
		return errors.Wrap(err, "bcryptGen")
	}
	res := s.store.DB(ctx).Model(user).Update("password", hash)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update password")
	}
	return nil
}

func (s *Users) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), s.bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *Users) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}

// userViews loads users in the order of ids, flagging those the viewer follows.
func userViews(tx *gorm.DB, viewer *db.User, ids []uint64) ([]UserView, error) {
	if len(ids) == 0 {
		return []UserView{}, nil
	}
	users := make([]db.User, 0, len(ids))
	if err := tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "find users")
	}
	byID := make(map[uint64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var viewerID uint64
	if viewer != nil {
		viewerID = viewer.ID
	}
	followed, err := members(tx, KindSubscription, viewerID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]UserView, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, UserView{User: u, IsSubscribed: followed[id]})
		}
	}
	return out, nil
}
