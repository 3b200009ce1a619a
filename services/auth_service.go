package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ansr/line"
	"ansr/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const authorizeEndpoint = "https://access.line.me/oauth2/v2.1/authorize"

// AuthService handles host sign-in. Authentication itself is delegated to
// LINE Login; this service exchanges the authorization code, keeps the host's
// account record up to date and issues the session token the UI sends back.
type AuthService struct {
	db           *gorm.DB
	line         *line.Client
	jwtSecret    string
	clientID     string
	clientSecret string
}

type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func NewAuthService(db *gorm.DB, lineClient *line.Client, jwtSecret, clientID, clientSecret string) *AuthService {
	return &AuthService{
		db:           db,
		line:         lineClient,
		jwtSecret:    jwtSecret,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// GetAuthorizeURL builds the LINE Login redirect for the given web origin.
func (s *AuthService) GetAuthorizeURL(origin string) string {
	query := url.Values{
		"response_type": {"code"},
		"client_id":     {s.clientID},
		"redirect_uri":  {redirectURI(origin)},
		"scope":         {"profile"},
		"state":         {"-"},
	}
	return authorizeEndpoint + "?" + query.Encode()
}

// HandleCallback finishes the login: code to access token, access token to
// profile, upsert the host record, issue a session JWT.
func (s *AuthService) HandleCallback(ctx context.Context, code, origin string) (*AuthResult, error) {
	accessToken, err := s.line.ExchangeLoginCode(ctx, code, redirectURI(origin), s.clientID, s.clientSecret)
	if err != nil {
		return nil, err
	}

	profile, err := s.line.GetLoginProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:          profile.UserID,
		DisplayName: profile.DisplayName,
		PhotoURL:    profile.PictureURL,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "photo_url", "updated_at"}),
	}).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// GetProfile returns the host account for a user id.
func (s *AuthService) GetProfile(userID string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) generateToken(user models.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    "ansr",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(7 * 24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// The web app handles the callback on its hash route.
func redirectURI(origin string) string {
	return strings.TrimSuffix(origin, "/") + "/#/auth/callback"
}
