package user

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleUserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type UserService interface {
	LoginWithGoogle(ctx context.Context, code string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

type userService struct {
	repo        UserRepository
	oauthConfig *oauth2.Config
}

func NewService(repo UserRepository) UserService {
	return &userService{
		repo: repo,
		oauthConfig: &oauth2.Config{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (s *userService) LoginWithGoogle(ctx context.Context, code string) (*User, error) {
	log := config.WithContext(ctx)

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		log.WithError(err).Error("Failed to exchange Google authorization code")
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		log.WithError(err).Error("Failed to fetch Google user info")
		return nil, err
	}

	u := &User{
		Name:      info.Name,
		Email:     info.Email,
		Role:      defaultRoleFor(info.Email),
		AvatarURL: info.Picture,
	}
	if err := s.repo.Upsert(u); err != nil {
		log.WithError(err).Error("Failed to upsert user")
		return nil, err
	}

	log.WithField("user_id", u.ID).Info("User logged in with Google")
	return u, nil
}

func (s *userService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// Recruiters sign in with the company domain; everyone else is a candidate.
func defaultRoleFor(email string) string {
	domain := os.Getenv("RECRUITER_EMAIL_DOMAIN")
	if domain == "" {
		return "candidate"
	}
	if len(email) > len(domain) && email[len(email)-len(domain)-1:] == "@"+domain {
		return "recruiter"
	}
	return "candidate"
}

func (s *userService) GetByID(ctx context.Context, id string) (*User, error) {
	log := config.WithContext(ctx)

	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.FindByID(parsed)
	if err != nil {
		log.WithError(err).Warn("User not found")
		return nil, err
	}
	return u, nil
}
