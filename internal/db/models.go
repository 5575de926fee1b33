package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/constraint"
)

// Field groups shared by several entities. They are embedded, gorm flattens them into the
// owning table.
type (
	Model struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Named struct {
		Name string `gorm:"size:200;not null;index" validate:"required,max=200"`
	}

	UserRecipe struct {
		UserID   uint64 `gorm:"not null;index:,unique,composite:user_recipe"`
		RecipeID uint64 `gorm:"not null;index:,unique,composite:user_recipe"`
	}
)

type (
	User struct {
		Model
		Email     string `gorm:"size:254;uniqueIndex;not null" validate:"required,email,max=254"`
		Username  string `gorm:"size:150;uniqueIndex;not null" validate:"required,max=150,username"`
		FirstName string `gorm:"size:150;not null" validate:"max=150"`
		LastName  string `gorm:"size:150;not null" validate:"max=150"`
		Password  string `gorm:"not null"`
		Token     string `gorm:"index"`
	}

	Tag struct {
		Model
		Named
		Slug  string `gorm:"size:200;uniqueIndex;not null" validate:"required,max=200,slug"`
		Color string `gorm:"size:7;not null" validate:"required,color"`
	}

	MeasurementUnit struct {
		Model
		Named
	}

	Ingredient struct {
		Model
		Named
		MeasurementUnitID uint64           `gorm:"not null"`
		MeasurementUnit   *MeasurementUnit `gorm:"constraint:OnDelete:RESTRICT" validate:"-"`
	}

	Recipe struct {
		Model
		Named
		AuthorID    uint64             `gorm:"not null;index"`
		Author      *User              `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
		Text        string             `gorm:"not null" validate:"required"`
		CookingTime int                `gorm:"not null" validate:"min=1"`
		Image       string             `gorm:"not null"`
		Tags        []Tag              `gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE" validate:"-"`
		Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
	}

	// RecipeIngredient keeps a snapshot of the ingredient's unit taken when the row was written.
	RecipeIngredient struct {
		Model
		RecipeID          uint64           `gorm:"not null;index:,unique,composite:recipe_ingredient"`
		IngredientID      uint64           `gorm:"not null;index:,unique,composite:recipe_ingredient"`
		Amount            int              `gorm:"not null" validate:"gte=0"`
		MeasurementUnitID uint64           `gorm:"not null"`
		Ingredient        *Ingredient      `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
		MeasurementUnit   *MeasurementUnit `gorm:"constraint:OnDelete:RESTRICT" validate:"-"`
	}

	// Subscribe means Follower follows Author.
	Subscribe struct {
		Model
		AuthorID   uint64 `gorm:"not null;index:,unique,composite:author_follower;check:chk_subscribes_not_self,author_id <> follower_id" validate:"nefield=FollowerID"`
		FollowerID uint64 `gorm:"not null;index:,unique,composite:author_follower"`
		Author     *User  `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
		Follower   *User  `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
	}

	FavoriteEntry struct {
		Model
		UserRecipe
		User   *User   `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
		Recipe *Recipe `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
	}

	ShoppingCartEntry struct {
		Model
		UserRecipe
		User   *User   `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
		Recipe *Recipe `gorm:"constraint:OnDelete:CASCADE" validate:"-"`
	}
)

func (u *User) BeforeSave(*gorm.DB) error              { return constraint.Check(u) }
func (t *Tag) BeforeSave(*gorm.DB) error               { return constraint.Check(t) }
func (m *MeasurementUnit) BeforeSave(*gorm.DB) error   { return constraint.Check(m) }
func (i *Ingredient) BeforeSave(*gorm.DB) error        { return constraint.Check(i) }
func (r *Recipe) BeforeSave(*gorm.DB) error            { return constraint.Check(r) }
func (ri *RecipeIngredient) BeforeSave(*gorm.DB) error { return constraint.Check(ri) }
func (s *Subscribe) BeforeSave(*gorm.DB) error         { return constraint.Check(s) }
