package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/block-scheduler-api/internal/models"
)

func newCatalogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCatalogRepositoryFindProgram(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT id, name, created_at, updated_at FROM programs WHERE id = \\$1").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).AddRow("prog-1", "Nursing", now, now))
	mock.ExpectQuery("FROM programs").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	program, err := repo.FindProgram(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.Equal(t, "Nursing", program.Name)

	_, err = repo.FindProgram(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryListPendingModules(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)
	from := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	mock.ExpectQuery("FROM modules m\\s+LEFT JOIN LATERAL").
		WithArgs("prog-1", from, to, models.BlockMinutes).
		WillReturnRows(sqlmock.NewRows([]string{"id", "program_id", "name", "subject_code", "weekly_minutes", "satisfied_blocks"}).
			AddRow("mod-2", "prog-1", "Anatomy", "ANA", 180, 1).
			AddRow("mod-1", "prog-1", "Ethics", "", 70, 0))

	modules, err := repo.ListPendingModules(context.Background(), "prog-1", from, to)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, 6, modules[0].RequiredBlocks())
	assert.Equal(t, 1, modules[0].SatisfiedBlocks)
	assert.Equal(t, "ANA Anatomy", modules[0].EventTitle())
	assert.Equal(t, "Ethics", modules[1].EventTitle())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryListEligibleTeachers(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery("FROM teacher_programs tp\\s+JOIN teachers t").
		WithArgs("prog-1", models.DefaultPriority).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "weekly_hour_cap", "active", "priority"}).
			AddRow("t1", "Ana", 10.5, true, 1).
			AddRow("t2", "Bea", 4, true, 999))

	teachers, err := repo.ListEligibleTeachers(context.Background(), "prog-1")
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, 630, teachers[0].CapMinutes())
	assert.Equal(t, 999, teachers[1].Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryListUsableRoomsAndRules(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery("FROM rooms r\\s+WHERE NOT EXISTS").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "capacity"}).
			AddRow("r1", "Lab", 40).
			AddRow("r2", "Room B", 20))
	mock.ExpectQuery("FROM teacher_availability_rules").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "weekday", "block_from", "block_to", "effect", "valid_from", "valid_until"}).
			AddRow("rule-1", "t1", 1, 1, 4, "DENY", nil, nil))
	mock.ExpectQuery("FROM preferred_rooms WHERE program_id = \\$1").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"program_id", "module_id", "room_id"}).
			AddRow("prog-1", nil, "r2"))

	rooms, err := repo.ListUsableRooms(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rules, err := repo.ListAvailabilityRules(context.Background(), []string{"t1"})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, models.RuleDeny, rules[0].Effect)

	none, err := repo.ListAvailabilityRules(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	prefs, err := repo.ListPreferredRooms(context.Background(), "prog-1")
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Nil(t, prefs[0].ModuleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
