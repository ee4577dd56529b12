package settings_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"crewmatch/apps/backend/internal/settings"
)

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "match_limit", "similarity_threshold"}).
			AddRow(1, 15, 0.6)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, match_limit, similarity_threshold FROM settings WHERE id = 1")).
			WillReturnRows(rows)

		s, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.NotNil(t, s)
		assert.Equal(t, 15, s.MatchLimit)
		assert.Equal(t, 0.6, s.SimilarityThreshold)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
			WillReturnError(sqlmock.ErrCancelled)

		s, err := repo.Get(context.Background())
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestPostgresRepo_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)

	s := &settings.Settings{MatchLimit: 20, SimilarityThreshold: 0.7}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE settings SET match_limit = $1, similarity_threshold = $2, updated_at = NOW() WHERE id = 1")).
		WithArgs(s.MatchLimit, s.SimilarityThreshold).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Update(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
