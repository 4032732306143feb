package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

// TokenPair хранит пару access/refresh токенов.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// Identity личность запроса: кто действует, с какой ролью и от какой организации.
type Identity struct {
	UserID         uuid.UUID
	Role           string
	OrganizationID *uuid.UUID
}

// IsAdmin администратор видит все организации.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// OrganizationScope организация, которой ограничены выборки; nil для администратора.
func (i Identity) OrganizationScope() *uuid.UUID {
	if i.IsAdmin() {
		return nil
	}
	return i.OrganizationID
}

// CanAccessOrganization может ли пользователь работать с данными организации orgID.
func (i Identity) CanAccessOrganization(orgID *uuid.UUID) bool {
	if i.IsAdmin() {
		return true
	}
	if orgID == nil || i.OrganizationID == nil {
		return false
	}
	return *orgID == *i.OrganizationID
}

// IdentityFromMembership собирает Identity из членства пользователя.
func IdentityFromMembership(m *models.Membership) Identity {
	return Identity{UserID: m.UserID, Role: m.Role, OrganizationID: m.OrganizationID}
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// GeneratePair выпускает новую пару токенов.
func (m *TokenManager) GeneratePair(id Identity) (*TokenPair, time.Time, time.Time, error) {
	now := time.Now()
	accessExp := now.Add(m.accessTTL)
	refreshExp := now.Add(m.refreshTTL)

	accessToken, err := m.createAccessToken(id, now, accessExp)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	refreshToken, err := m.createRefreshToken(id.UserID, now, refreshExp)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    m.accessTTL,
	}, accessExp, refreshExp, nil
}

// ParseRefresh проверяет refresh токен и возвращает клеймы.
func (m *TokenManager) ParseRefresh(token string) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, m.keyFunc(m.refreshSecret))
	if err != nil {
		return nil, err
	}

	if claims, ok := parsed.Claims.(*jwt.RegisteredClaims); ok && parsed.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}

// ParseAccess извлекает Identity из access токена.
func (m *TokenManager) ParseAccess(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, m.keyFunc(m.accessSecret))
	if err != nil {
		return Identity{}, err
	}
	if !parsed.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{UserID: userID}
	id.Role, _ = claims["role"].(string)
	if org, ok := claims["org"].(string); ok && org != "" {
		orgID, err := uuid.Parse(org)
		if err != nil {
			return Identity{}, jwt.ErrTokenInvalidClaims
		}
		id.OrganizationID = &orgID
	}

	return id, nil
}

// keyFunc принимает только HMAC, чтобы токен с alg=none не прошёл проверку.
func (m *TokenManager) keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}
}

// createAccessToken формирует access токен с ролью и организацией.
func (m *TokenManager) createAccessToken(id Identity, now, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.UserID.String(),
		"role": id.Role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	if id.OrganizationID != nil {
		claims["org"] = id.OrganizationID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.accessSecret)
}

// createRefreshToken формирует refresh токен со случайным ID.
func (m *TokenManager) createRefreshToken(userID uuid.UUID, now, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.refreshSecret)
}
