package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/requestdata"
	"github.com/BlindPI/arccm-backend/internal/types"
)

// JWTClaims carries the user id (sub), session id and role. The session id is
// the user_token row id, so one revocation delete invalidates refresh for that
// session.
type JWTClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type AuthService interface {
	Register(ctx context.Context, input *RegisterInput) (*types.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context) error
	// SetContextFromToken validates the bearer token and attaches request data
	// to the context for downstream handlers.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	AccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	jwtSecretKey  string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:            db,
		log:           baseLog.With("service", "AuthService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		jwtSecretKey:  jwtSecretKey,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (as *authService) Register(ctx context.Context, input *RegisterInput) (*types.User, error) {
	if input == nil {
		return nil, apperrors.Wrap(fmt.Errorf("missing registration payload"), apperrors.ErrValidation)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.Wrap(fmt.Errorf("invalid email"), apperrors.ErrValidation)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.Wrap(fmt.Errorf("password must be at least 8 characters"), apperrors.ErrValidation)
	}

	exists, err := as.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if exists {
		return nil, apperrors.Wrap(fmt.Errorf("email already registered"), apperrors.ErrConflict)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		Email:     email,
		Password:  string(hashed),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      types.RoleIT,
	}
	created, err := as.userRepo.Create(ctx, nil, user)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	as.log.Info("user registered", "user_id", created.ID)
	return created, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if user == nil {
		return nil, apperrors.Wrap(fmt.Errorf("invalid credentials"), apperrors.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("invalid credentials"), apperrors.ErrUnauthorized)
	}

	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pair, err = as.issueSession(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	as.log.Info("user logged in", "user_id", user.ID)
	return pair, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.Wrap(fmt.Errorf("missing refresh token"), apperrors.ErrUnauthorized)
	}

	var pair *TokenPair
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := as.userTokenRepo.GetByRefreshToken(ctx, tx, refreshToken)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperrors.Wrap(fmt.Errorf("unknown refresh token"), apperrors.ErrUnauthorized)
		}
		if existing.ExpiresAt.Before(time.Now()) {
			_ = as.userTokenRepo.DeleteByID(ctx, tx, existing.ID)
			return apperrors.Wrap(fmt.Errorf("refresh token expired"), apperrors.ErrUnauthorized)
		}
		users, err := as.userRepo.GetByIDs(ctx, tx, []uuid.UUID{existing.UserID})
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return apperrors.Wrap(fmt.Errorf("user for refresh token not found"), apperrors.ErrUnauthorized)
		}
		if err := as.userTokenRepo.DeleteByID(ctx, tx, existing.ID); err != nil {
			return err
		}
		pair, err = as.issueSession(ctx, tx, users[0])
		return err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUnauthorized) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	return pair, nil
}

func (as *authService) Logout(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.SessionID == uuid.Nil {
		return apperrors.Wrap(fmt.Errorf("no session in context"), apperrors.ErrUnauthorized)
	}
	if err := as.userTokenRepo.DeleteByID(ctx, nil, rd.SessionID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	as.log.Info("user logged out", "session_id", rd.SessionID)
	return nil
}

// issueSession creates a user_token row and signs an access token bound to it.
func (as *authService) issueSession(ctx context.Context, tx *gorm.DB, user *types.User) (*TokenPair, error) {
	session := &types.UserToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    time.Now().Add(as.refreshTTL),
	}
	if _, err := as.userTokenRepo.Create(ctx, tx, session); err != nil {
		return nil, err
	}

	claims := JWTClaims{
		SessionID: session.ID.String(),
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: signed, RefreshToken: session.RefreshToken}, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apperrors.Wrap(fmt.Errorf("missing bearer token"), apperrors.ErrUnauthorized)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, apperrors.Wrap(fmt.Errorf("parse token: %w", err), apperrors.ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, apperrors.Wrap(fmt.Errorf("invalid token"), apperrors.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apperrors.Wrap(fmt.Errorf("invalid subject: %w", err), apperrors.ErrUnauthorized)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ctx, apperrors.Wrap(fmt.Errorf("invalid session id: %w", err), apperrors.ErrUnauthorized)
	}

	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		SessionID:   sessionID,
		Role:        claims.Role,
	}), nil
}

func (as *authService) AccessTTL() time.Duration { return as.accessTTL }
