package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trackhub/auth-service/internal/core/domain"
)

type accountRow struct {
	ID           string            `gorm:"type:uuid;primaryKey"`
	Name         string            `gorm:"type:varchar(255);not null"`
	Email        string            `gorm:"type:varchar(255);uniqueIndex;not null"`
	Company      string            `gorm:"type:varchar(255);not null"`
	PasswordHash string            `gorm:"type:text;not null"`
	Role         string            `gorm:"type:varchar(16);not null"`
	IsActive     bool              `gorm:"not null"`
	LastLogin    *time.Time
	Settings     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (accountRow) TableName() string { return "accounts" }

// AccountRepository implements ports.AccountRepository on PostgreSQL.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	row := toAccountRow(a)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.first(r.db.WithContext(ctx).Where("email = ?", domain.NormalizeEmail(email)))
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	if !isUUID(id) {
		return nil, domain.ErrAccountNotFound
	}
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]any{"last_login": at.UTC()})
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"password_hash": hash,
		"updated_at":    at.UTC(),
	})
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"is_active":  active,
		"updated_at": at.UTC(),
	})
}

// MergeSettings locks the row, merges patch into the stored settings and
// writes the result in one transaction.
func (r *AccountRepository) MergeSettings(ctx context.Context, id string, patch map[string]any, at time.Time) (*domain.Account, error) {
	if !isUUID(id) {
		return nil, domain.ErrAccountNotFound
	}
	var row accountRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		merged := datatypes.JSONMap(domain.MergeSettings(row.Settings, patch))
		if err := tx.Model(&row).UpdateColumns(map[string]any{
			"settings":   merged,
			"updated_at": at.UTC(),
		}).Error; err != nil {
			return err
		}
		row.Settings = merged
		row.UpdatedAt = at.UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("merge settings: %w", err)
	}
	return row.toDomain(), nil
}

func (r *AccountRepository) first(q *gorm.DB) (*domain.Account, error) {
	var row accountRow
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return row.toDomain(), nil
}

// update writes exactly the given columns; updated_at is never filled in
// implicitly.
func (r *AccountRepository) update(ctx context.Context, id string, values map[string]any) error {
	if !isUUID(id) {
		return domain.ErrAccountNotFound
	}
	res := r.db.WithContext(ctx).Model(&accountRow{}).Where("id = ?", id).UpdateColumns(values)
	if res.Error != nil {
		return fmt.Errorf("update account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// isUUID reports whether id can match the uuid primary key at all.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func toAccountRow(a *domain.Account) accountRow {
	settings := datatypes.JSONMap{}
	for k, v := range a.Settings {
		settings[k] = v
	}
	row := accountRow{
		ID:           a.ID,
		Name:         a.Name,
		Email:        domain.NormalizeEmail(a.Email),
		Company:      a.Company,
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		IsActive:     a.IsActive,
		Settings:     settings,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
	if a.LastLogin != nil {
		ts := a.LastLogin.UTC()
		row.LastLogin = &ts
	}
	return row
}

func (r accountRow) toDomain() *domain.Account {
	settings := domain.CloneSettings(r.Settings)
	a := &domain.Account{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Company:      r.Company,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		IsActive:     r.IsActive,
		Settings:     settings,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin != nil {
		ts := r.LastLogin.UTC()
		a.LastLogin = &ts
	}
	return a
}
