package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/apperr"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/notification"
	"habitCoachAPI/internal/user"
)

type UserService struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

func NewUserService(db *pgxpool.Pool, log *logger.Logger) *UserService {
	return &UserService{db: db, log: log.With("service", "users")}
}

// ResolveUser returns the local user for a Clerk subject, creating it on
// first sight.
func (s *UserService) ResolveUser(ctx context.Context, clerkID string) (*user.User, error) {
	if clerkID == "" {
		return nil, fmt.Errorf("empty clerk id: %w", apperr.ErrForbidden)
	}

	u := &user.User{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (id, clerk_id, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (clerk_id) DO UPDATE SET clerk_id = EXCLUDED.clerk_id
		RETURNING id, clerk_id, name, timezone, created_at, updated_at
	`, uuid.New(), clerkID, user.DefaultTimezone).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Name,
		&u.Timezone,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return u, nil
}

// UpdateProfile changes the display name and/or timezone. The timezone
// must be a loadable IANA name.
func (s *UserService) UpdateProfile(ctx context.Context, u *user.User, req *user.UpdateProfileRequest) (*user.User, error) {
	name := u.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	tz := u.Timezone
	if req.Timezone != nil {
		tz = strings.TrimSpace(*req.Timezone)
		if tz == "" {
			tz = user.DefaultTimezone
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, apperr.Validation("unknown timezone %q", tz)
		}
	}

	updated := &user.User{}
	err := s.db.QueryRow(ctx, `
		UPDATE users SET name = $2, timezone = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, clerk_id, name, timezone, created_at, updated_at
	`, u.ID, name, tz).Scan(
		&updated.ID,
		&updated.ClerkID,
		&updated.Name,
		&updated.Timezone,
		&updated.CreatedAt,
		&updated.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.log.Info("profile updated", "user_id", u.ID, "timezone", tz)
	return updated, nil
}

// RegisterDevice stores a push token for the user. A token moves to the
// latest user that registers it.
func (s *UserService) RegisterDevice(ctx context.Context, u *user.User, req *notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	d := &notification.DeviceToken{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO device_tokens (id, user_id, token, platform)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, updated_at = NOW()
		RETURNING id, user_id, token, platform, created_at
	`, uuid.New(), u.ID, req.Token, req.Platform).Scan(&d.ID, &d.UserID, &d.Token, &d.Platform, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	return d, nil
}

// FindByClerkID looks a user up without creating one.
func (s *UserService) FindByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u := &user.User{}
	err := s.db.QueryRow(ctx, `
		SELECT id, clerk_id, name, timezone, created_at, updated_at
		FROM users WHERE clerk_id = $1
	`, clerkID).Scan(&u.ID, &u.ClerkID, &u.Name, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", clerkID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}
