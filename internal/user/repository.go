package user

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(id uuid.UUID) (*User, error)
	FindByEmail(email string) (*User, error)
	Upsert(u *User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(id uuid.UUID) (*User, error) {
	var u User
	if err := r.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByEmail(email string) (*User, error) {
	var u User
	if err := r.db.First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Upsert(u *User) error {
	existing, err := r.FindByEmail(u.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return r.db.Create(u).Error
		}
		return err
	}

	existing.Name = u.Name
	existing.AvatarURL = u.AvatarURL
	if err := r.db.Save(existing).Error; err != nil {
		return err
	}
	*u = *existing
	return nil
}
