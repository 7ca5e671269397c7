package service

import (
	"context"
	"io"
	"io/fs"
	"os"
	"time"

	"bus-stop-inventory/internal/model"
)

// The store interfaces are implemented by the pgx repositories and by the
// in-memory fakes in internal/testutil.

type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, query model.UserQuery) ([]model.User, int, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	// UpdateWithPassword stores the profile and the new hash atomically.
	UpdateWithPassword(ctx context.Context, u *model.User, passwordHash string, changedAt time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	Unlock(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type TokenStore interface {
	Create(ctx context.Context, t *model.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	// Rotate revokes the still-valid token oldHash and stores next in one
	// transaction, failing with model.ErrInvalidToken when oldHash is no longer valid.
	Rotate(ctx context.Context, oldHash string, next *model.RefreshToken) error
	Revoke(ctx context.Context, hash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	ListActive(ctx context.Context, userID string) ([]model.RefreshToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type AuditStore interface {
	Insert(ctx context.Context, entry *model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

type StopStore interface {
	List(ctx context.Context, query model.StopQuery) ([]model.BusStop, int, error)
	All(ctx context.Context) ([]model.BusStop, error)
	Export(ctx context.Context, filter model.ExportFilter) ([]model.BusStop, error)
	GetByID(ctx context.Context, id int64) (*model.BusStop, error)
	GetByCode(ctx context.Context, code string) (*model.BusStop, error)
	Create(ctx context.Context, s *model.BusStop) error
	Update(ctx context.Context, s *model.BusStop, changes []model.ChangeLog) error
	Delete(ctx context.Context, id int64) error
	History(ctx context.Context, stopID int64) ([]model.ChangeLog, error)
	Districts(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, monthStart time.Time) (model.StopStats, error)
	NeedingAttention(ctx context.Context, limit int) ([]model.AttentionItem, error)
}

type PhotoStore interface {
	Create(ctx context.Context, p *model.Photo) error
	GetByID(ctx context.Context, id int64) (*model.Photo, error)
	ListByStop(ctx context.Context, stopID int64) ([]model.Photo, error)
	SetMain(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type DirectoryStore interface {
	ListDistricts(ctx context.Context, activeOnly bool) ([]model.District, error)
	GetDistrict(ctx context.Context, id int64) (*model.District, error)
	CreateDistrict(ctx context.Context, d *model.District) error
	UpdateDistrict(ctx context.Context, d *model.District) error
	DeleteDistrict(ctx context.Context, id int64) error
	ListRoutes(ctx context.Context, activeOnly bool) ([]model.Route, error)
	GetRoute(ctx context.Context, id int64) (*model.Route, error)
	CreateRoute(ctx context.Context, rt *model.Route) error
	UpdateRoute(ctx context.Context, rt *model.Route) error
	DeleteRoute(ctx context.Context, id int64) error
}

// PhotoFiles is the on-disk side of photo management, implemented by
// storage.Storage.
type PhotoFiles interface {
	Save(clientPath string, r io.Reader, limit int64) (int64, error)
	Open(clientPath string) (*os.File, fs.FileInfo, error)
	Thumbnail(clientPath string, size int) (*os.File, fs.FileInfo, error)
	Remove(clientPath string) error
	RemoveAll(clientPath string) error
}
