package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Email     string    `gorm:"size:100;not null;unique" json:"email" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"password"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	IsAdmin   *bool     `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

/*
caches:
	User:$email
	Token:$token
	Tokens:$email (set)
*/

type sessionInfo struct {
	UserId int    `json:"user_id"`
	Email  string `json:"email"`
}

type LoginInfo struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Email)
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !utils.IsValidEmail(email) {
		return nil, errors.New("invalid email")
	}

	if err := utils.ValidateUnique[User](ctx, "", nil, "email", email, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:    email,
		Name:     input.Name,
		Password: string(hashed),
		IsActive: utils.NewTrue(),
		IsAdmin:  utils.NewFalse(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	user.PrepareGive()
	return &user, nil
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	var result LoginInfo

	email = strings.ToLower(strings.TrimSpace(email))

	user := User{}
	exists, err := config.GetRedisObject("User:"+email, &user)
	if err != nil {
		return &result, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Take(&user).Error
		if err != nil {
			return &result, errors.New("invalid email or password")
		}
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid email or password")
	}

	if user.IsActive != nil && !*user.IsActive {
		return &result, errors.New("user is disabled")
	}

	token := uuid.New().String()
	result.Token = token
	result.Name = user.Name
	result.Email = user.Email

	// store session in redis
	session := sessionInfo{UserId: user.ID, Email: user.Email}
	if err := config.SetRedisObject("Token:"+token, session, 24*time.Hour); err != nil {
		return nil, err
	}
	if err := config.AddRedisSet("Tokens:"+user.Email, token); err != nil {
		return nil, err
	}
	user.PrepareGive()
	if err := config.SetRedisObject("User:"+user.Email, user, 24*time.Hour); err != nil {
		return nil, err
	}

	return &result, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	email, ok := utils.GetUserEmailFromContext(ctx)
	if !ok || email == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+email, token); err != nil {
		return false, err
	}
	return true, nil
}

// SessionFromToken resolves a session token into the user it belongs to.
// Returns (0, "", nil) when the token is unknown or expired.
func SessionFromToken(token string) (int, string, error) {
	var session sessionInfo
	exists, err := config.GetRedisObject("Token:"+token, &session)
	if err != nil {
		return 0, "", err
	}
	if !exists {
		return 0, "", nil
	}
	return session.UserId, session.Email, nil
}

func GetUserById(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Take(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}
