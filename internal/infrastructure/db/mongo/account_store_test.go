package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/trackhub/auth-service/internal/core/domain"
)

func accountDoc(id string, settings bson.D, at time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "account_id", Value: id},
		{Key: "name", Value: "Bob"},
		{Key: "email", Value: "bob@x.com"},
		{Key: "company", Value: "Acme"},
		{Key: "password_hash", Value: "hash"},
		{Key: "role", Value: "user"},
		{Key: "is_active", Value: true},
		{Key: "settings", Value: settings},
		{Key: "created_at", Value: at},
		{Key: "updated_at", Value: at},
	}
}

func accountsNS(mt *mtest.T) string {
	return mt.DB.Name() + "." + accountsCollection
}

func TestAccountRepository_Store(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mt.Run("create duplicate email", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: accounts index: uniq_email",
		}))

		err := repo.Create(context.Background(), &domain.Account{ID: "acc-1", Email: "Bob@X.com"})
		assert.ErrorIs(mt, err, domain.ErrDuplicateEmail)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "insert", evt.CommandName)
	})

	mt.Run("create other failure", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Message: "not authorized",
			Name:    "Unauthorized",
		}))

		err := repo.Create(context.Background(), &domain.Account{ID: "acc-1", Email: "bob@x.com"})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, domain.ErrDuplicateEmail)
	})

	mt.Run("find by id missing", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, accountsNS(mt), mtest.FirstBatch))

		_, err := repo.FindByID(context.Background(), "acc-404")
		assert.ErrorIs(mt, err, domain.ErrAccountNotFound)
	})

	mt.Run("find by email normalizes and decodes", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, accountsNS(mt), mtest.FirstBatch,
			accountDoc("acc-1", bson.D{{Key: "ui", Value: bson.D{{Key: "theme", Value: "dark"}}}}, at)))

		got, err := repo.FindByEmail(context.Background(), " BOB@x.com ")
		require.NoError(mt, err)
		assert.Equal(mt, "acc-1", got.ID)
		assert.Equal(mt, map[string]any{"ui": map[string]any{"theme": "dark"}}, got.Settings)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "bob@x.com", evt.Command.Lookup("filter", "email").StringValue())
	})

	mt.Run("update unmatched is not found", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.SetActive(context.Background(), "acc-404", false, at)
		assert.ErrorIs(mt, err, domain.ErrAccountNotFound)
	})

	mt.Run("update last login leaves updated_at alone", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, repo.UpdateLastLogin(context.Background(), "acc-1", at))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		set, err := evt.Command.Lookup("updates").Array().Index(0).Value().Document().LookupErr("u", "$set")
		require.NoError(mt, err)
		_, err = set.Document().LookupErr("updated_at")
		assert.Error(mt, err)
		_, err = set.Document().LookupErr("last_login")
		assert.NoError(mt, err)
	})

	mt.Run("merge settings sets dotted paths", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		stored := bson.D{{Key: "ui", Value: bson.D{
			{Key: "theme", Value: "light"},
			{Key: "density", Value: "compact"},
		}}}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: accountDoc("acc-1", stored, at)},
		))

		got, err := repo.MergeSettings(context.Background(), "acc-1", map[string]any{
			"ui":    map[string]any{"theme": "light"},
			"empty": map[string]any{},
		}, at)
		require.NoError(mt, err)
		assert.Equal(mt, "compact", got.Settings["ui"].(map[string]any)["density"])

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "findAndModify", evt.CommandName)
		set := evt.Command.Lookup("update", "$set").Document()
		assert.Equal(mt, "light", set.Lookup("settings.ui.theme").StringValue())
		_, err = set.LookupErr("settings.ui")
		assert.Error(mt, err)
		_, err = set.LookupErr("settings.empty")
		assert.Error(mt, err)
		_, err = set.LookupErr("settings")
		assert.Error(mt, err)
	})

	mt.Run("merge settings missing account", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.MergeSettings(context.Background(), "acc-404", map[string]any{"locale": "en"}, at)
		assert.ErrorIs(mt, err, domain.ErrAccountNotFound)
	})

	mt.Run("merge settings through a scalar rewrites the whole map", func(mt *mtest.T) {
		repo := NewAccountRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    codePathNotViable,
				Message: "Cannot create field 'theme' in element {ui: \"dark\"}",
				Name:    "PathNotViable",
			}),
			mtest.CreateCursorResponse(0, accountsNS(mt), mtest.FirstBatch,
				accountDoc("acc-1", bson.D{{Key: "ui", Value: "dark"}, {Key: "locale", Value: "en"}}, at)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: accountDoc("acc-1", bson.D{
				{Key: "ui", Value: bson.D{{Key: "theme", Value: "light"}}},
				{Key: "locale", Value: "en"},
			}, at)}),
		)

		got, err := repo.MergeSettings(context.Background(), "acc-1", map[string]any{
			"ui": map[string]any{"theme": "light"},
		}, at)
		require.NoError(mt, err)
		assert.Equal(mt, map[string]any{
			"ui":     map[string]any{"theme": "light"},
			"locale": "en",
		}, got.Settings)

		first := mt.GetStartedEvent()
		require.NotNil(mt, first)
		assert.Equal(mt, "findAndModify", first.CommandName)

		lookup := mt.GetStartedEvent()
		require.NotNil(mt, lookup)
		assert.Equal(mt, "find", lookup.CommandName)

		rewrite := mt.GetStartedEvent()
		require.NotNil(mt, rewrite)
		assert.Equal(mt, "findAndModify", rewrite.CommandName)
		set := rewrite.Command.Lookup("update", "$set").Document()
		assert.Equal(mt, "light", set.Lookup("settings", "ui", "theme").StringValue())
		assert.Equal(mt, "en", set.Lookup("settings", "locale").StringValue())
	})
}
