package store

import (
	"context"
	"errors"
	"time"

	"github.com/smartcycle/telemetry-server/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// DayKey formats a timestamp as the UTC calendar day key used for the
// daily ledgers.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UserStore owns account records.
type UserStore interface {
	// CreateUser assigns the next user ID and persists the account.
	// Returns ErrDuplicateEmail if the email is already registered.
	CreateUser(ctx context.Context, name, email, mobile, passwordHash string) (*models.User, error)
	FindUserByID(ctx context.Context, id int) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByMobile(ctx context.Context, mobile string) (*models.User, error)
}

// BikeStore owns the current-state table: one row per bike, overwritten
// on each accepted reading.
type BikeStore interface {
	// UpsertTelemetry overwrites only the telemetry-derived fields of a
	// bike row, inserting an active row if the bike is unknown.
	// Ownership fields set at provisioning are never touched.
	UpsertTelemetry(ctx context.Context, bikeID string, loc models.Location, avgSpeed, battery float64, seenAt time.Time) error
	ListBikes(ctx context.Context) ([]models.BikeState, error)
	FindBike(ctx context.Context, bikeID string) (*models.BikeState, error)
	ListBikesByGuardian(ctx context.Context, guardianID string) ([]models.BikeState, error)
}

// GuardianStore owns guardian records with their nested wards.
type GuardianStore interface {
	// GetOrCreateGuardian returns the guardian for a user, synthesizing
	// and persisting a fresh one on first request.
	GetOrCreateGuardian(ctx context.Context, user *models.User) (*models.Guardian, error)
	FindGuardianByUser(ctx context.Context, userID int) (*models.Guardian, error)
	ListGuardians(ctx context.Context) ([]models.Guardian, error)
	// AddWard provisions a ward and its companion bike row as an atomic
	// pair. Ward and bike IDs are drawn from a monotonic sequence and
	// are unique across guardians even under concurrent provisioning.
	AddWard(ctx context.Context, userID int, req models.WardRequest) (*models.Ward, *models.BikeState, error)
}

// LedgerStore owns the append-only per-day telemetry ledgers.
type LedgerStore interface {
	Append(ctx context.Context, day string, ev models.TelemetryEvent) error
	Day(ctx context.Context, day string) ([]models.TelemetryEvent, error)
	// Dates returns the sorted set of day keys that have a ledger.
	Dates(ctx context.Context) ([]string, error)
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	BikeStore
	GuardianStore
	LedgerStore
}
