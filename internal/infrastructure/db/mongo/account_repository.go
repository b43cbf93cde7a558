package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trackhub/auth-service/internal/core/domain"
)

const (
	accountsCollection = "accounts"

	// codePathNotViable is returned when a dotted $set path crosses a scalar.
	codePathNotViable = 28
)

// AccountRepository implements ports.AccountRepository using MongoDB.
type AccountRepository struct {
	coll *mongo.Collection
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(accountsCollection)}
}

type mongoAccount struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AccountID    string             `bson:"account_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	Company      string             `bson:"company"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	IsActive     bool               `bson:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty"`
	Settings     bson.M             `bson:"settings"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// EnsureIndexes creates the unique indexes the repository relies on for
// email and account id lookups.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_account_id"),
		},
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	doc := toMongoAccount(a)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"account_id": id})
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"last_login": at.UTC()}})
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    at.UTC(),
	}})
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": at.UTC(),
	}})
}

// MergeSettings applies patch as dotted $set paths so concurrent patches to
// different keys do not overwrite each other. When a path runs into a scalar
// the merged document is computed in memory and written whole.
func (r *AccountRepository) MergeSettings(ctx context.Context, id string, patch map[string]any, at time.Time) (*domain.Account, error) {
	set := bson.M{"updated_at": at.UTC()}
	for path, v := range domain.FlattenSettings("settings", patch) {
		set[path] = v
	}

	updated, err := r.findOneAndSet(ctx, id, set)
	if err == nil {
		return updated, nil
	}

	var se mongo.ServerError
	if !errors.As(err, &se) || !se.HasErrorCode(codePathNotViable) {
		return nil, err
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.findOneAndSet(ctx, id, bson.M{
		"settings":   domain.MergeSettings(current.Settings, patch),
		"updated_at": at.UTC(),
	})
}

func (r *AccountRepository) findOneAndSet(ctx context.Context, id string, set bson.M) (*domain.Account, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoAccount
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"account_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("update account settings: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc mongoAccount
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"account_id": id}, update)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func toMongoAccount(a *domain.Account) mongoAccount {
	settings := bson.M{}
	for k, v := range a.Settings {
		settings[k] = v
	}
	doc := mongoAccount{
		AccountID:    a.ID,
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
		doc.LastLogin = &ts
	}
	return doc
}

func (m mongoAccount) toDomain() *domain.Account {
	a := &domain.Account{
		ID:           m.AccountID,
		Name:         m.Name,
		Email:        m.Email,
		Company:      m.Company,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		IsActive:     m.IsActive,
		Settings:     plainSettings(m.Settings),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.LastLogin != nil {
		ts := m.LastLogin.UTC()
		a.LastLogin = &ts
	}
	return a
}

// plainSettings converts decoded BSON containers into plain Go maps and
// slices so settings compare and merge the same way for every store.
func plainSettings(m bson.M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainSettings(t)
	case map[string]any:
		return plainSettings(t)
	case bson.D:
		return plainSettings(t.Map())
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
