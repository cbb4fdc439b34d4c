package repo

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	dbcore "github.com/menu-planning/backend-sub003/data/db"
	dbbasic "github.com/menu-planning/backend-sub003/data/db/basic"
	"github.com/menu-planning/backend-sub003/data/orm"
	ormbasic "github.com/menu-planning/backend-sub003/data/orm/basic"
	"github.com/menu-planning/backend-sub003/data/orm/query"
	"github.com/menu-planning/backend-sub003/domain/entity"
	"github.com/menu-planning/backend-sub003/domain/repository"
	"github.com/menu-planning/backend-sub003/errors"
)

var (
	mealsTable = orm.MustTableMeta("", "meals",
		orm.FieldMeta{Column: "id", Kind: orm.KindString, PrimaryKey: true},
		orm.FieldMeta{Column: "name", Kind: orm.KindString},
		orm.FieldMeta{Column: "total_time", Kind: orm.KindNumeric, Nullable: true},
		orm.FieldMeta{Column: "discarded", Kind: orm.KindBool},
	)
	recipesTable = orm.MustTableMeta("", "recipes",
		orm.FieldMeta{Column: "id", Kind: orm.KindString, PrimaryKey: true},
		orm.FieldMeta{Column: "meal_id", Kind: orm.KindString},
		orm.FieldMeta{Column: "name", Kind: orm.KindString},
	)
)

var schema = []string{
	`CREATE TABLE meals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		total_time INTEGER CHECK (total_time IS NULL OR total_time >= 0),
		discarded BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE recipes (
		id TEXT PRIMARY KEY,
		meal_id TEXT NOT NULL REFERENCES meals(id),
		name TEXT NOT NULL
	)`,
	`CREATE TABLE loose_meals (id TEXT NOT NULL, name TEXT NOT NULL)`,
}

type testMeal struct {
	entity.Discardable
	ID        string
	Name      string
	TotalTime *int
}

func (m *testMeal) GetID() string { return m.ID }

func (m *testMeal) Validate() error {
	if m.Name == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "meal name is required")
	}
	return nil
}

type testMealMapper struct{}

func (testMealMapper) ToRecord(ctx context.Context, sess orm.ISession, m *testMeal) (orm.Record, error) {
	rec := orm.Record{"id": m.ID, "name": m.Name, "total_time": nil}
	if m.TotalTime != nil {
		rec["total_time"] = *m.TotalTime
	}
	return rec, nil
}

func (testMealMapper) ToDomain(rec orm.Record) (*testMeal, error) {
	m := &testMeal{ID: cast.ToString(rec["id"]), Name: cast.ToString(rec["name"])}
	if v := rec["total_time"]; v != nil {
		n := cast.ToInt(v)
		m.TotalTime = &n
	}
	m.Discarded = cast.ToBool(rec["discarded"])
	return m, nil
}

func intp(n int) *int { return &n }

func col(t *orm.TableMeta, name string) orm.Column {
	c, ok := t.Column(name)
	if !ok {
		panic("no column " + name)
	}
	return c
}

func mealsEngine(policy query.Policy) *query.Engine {
	mealID, _ := recipesTable.Column("meal_id")
	id, _ := mealsTable.Column("id")
	reg := query.NewRegistry(mealsTable, policy)
	reg.MustAddJoin(query.Hop{Table: recipesTable, From: mealsTable.ID(), On: []query.JoinOn{query.On(mealID, id)}})
	reg.MustAddMapper(query.NewColumnMapper(mealsTable, query.SameName("id", "name", "total_time", "discarded")...))
	reg.MustAddMapper(query.NewColumnMapper(recipesTable, query.Bind("recipe_name", "name")))
	return query.NewEngine(reg)
}

type fixture struct {
	db   *dbbasic.DB
	repo *Repository[*testMeal, string]
}

func setup(t *testing.T, policy query.Policy) fixture {
	t.Helper()
	db, err := dbbasic.New(dbcore.DBConfig{
		Driver:       "sqlite",
		Database:     filepath.Join(t.TempDir(), "repo.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, ddl := range schema {
		_, err = db.Exec(context.Background(), ddl)
		require.NoError(t, err)
	}

	sess := ormbasic.NewSession(db)
	return fixture{db: db, repo: New[*testMeal, string](sess, mealsEngine(policy), testMealMapper{})}
}

func (f fixture) count(t *testing.T, where string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(context.Background(), "SELECT COUNT(*) FROM meals WHERE "+where, args...).Scan(&n))
	return n
}

func (f fixture) seed(t *testing.T, meals ...*testMeal) {
	t.Helper()
	ctx := context.Background()
	for _, m := range meals {
		require.NoError(t, f.repo.Add(ctx, m))
	}
	require.NoError(t, f.repo.Session().Flush(ctx))
	f.repo.Reset()
}

func TestRepository_ImplementsInterface(t *testing.T) {
	var _ repository.IRepository[*testMeal, string] = (*Repository[*testMeal, string])(nil)
}

func TestRepository_AddThenQuery(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())

	m := &testMeal{ID: "m1", Name: "soup", TotalTime: intp(15)}
	require.NoError(t, f.repo.Add(ctx, m))
	state, ok := f.repo.StateOf(m)
	require.True(t, ok)
	assert.Equal(t, StateAdded, state)
	assert.Equal(t, 0, f.count(t, "1 = 1"), "add only stages the write")

	got, err := f.repo.Query(ctx, map[string]any{"name": "soup"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 15, *got[0].TotalTime)
	assert.Equal(t, 1, f.count(t, "id = ?", "m1"), "query autoflushes staged writes")

	_, ok = f.repo.StateOf(m)
	assert.False(t, ok, "returned reference replaces the added one")
	state, ok = f.repo.StateOf(got[0])
	require.True(t, ok)
	assert.Equal(t, StateFetched, state)
}

func TestRepository_AddRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())

	err := f.repo.Add(ctx, &testMeal{Name: "no id"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeInvalidInput))

	err = f.repo.Add(ctx, &testMeal{ID: "m1"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeInvalidInput))
	assert.Empty(t, f.repo.Seen())
}

func TestRepository_QuerySortAndJoin(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t,
		&testMeal{ID: "m1", Name: "pasta night", TotalTime: intp(10)},
		&testMeal{ID: "m2", Name: "leftovers"},
		&testMeal{ID: "m3", Name: "roast", TotalTime: intp(90)},
	)
	_, err := f.db.Exec(ctx, `INSERT INTO recipes (id, meal_id, name) VALUES ('r1', 'm1', 'Pasta'), ('r2', 'm1', 'Salad'), ('r3', 'm3', 'Pasta')`)
	require.NoError(t, err)

	got, err := f.repo.Query(ctx, map[string]any{"sort": "-total_time"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m3", "m1", "m2"}, []string{got[0].ID, got[1].ID, got[2].ID}, "nulls sort last")

	got, err = f.repo.Query(ctx, map[string]any{"recipe_name": "Pasta"}, repository.WithSort("total_time"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m3", got[1].ID)

	got, err = f.repo.Query(ctx, map[string]any{"recipe_name": []string{"Pasta", "Salad"}})
	require.NoError(t, err)
	assert.Len(t, got, 2, "collection filter across a join is distinct")

	got, err = f.repo.Query(ctx, map[string]any{"total_time_gte": 50, "total_time_lte": 20})
	require.NoError(t, err)
	assert.Empty(t, got, "contradictory range runs and matches nothing")

	rows, err := f.repo.QueryRaw(ctx, map[string]any{"name_like": "over"}, repository.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "leftovers", rows[0]["name"])
}

func TestRepository_QueryValidationBeforeExecution(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	require.NoError(t, f.repo.Add(ctx, &testMeal{ID: "m1", Name: "soup"}))

	_, err := f.repo.Query(ctx, map[string]any{"calories_gte": 100})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 0, f.count(t, "1 = 1"), "no SQL runs, not even the autoflush")
}

func TestRepository_Get(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t, &testMeal{ID: "m1", Name: "soup"})

	m, err := f.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "soup", m.Name)
	state, ok := f.repo.StateOf(m)
	require.True(t, ok)
	assert.Equal(t, StateFetched, state)

	_, err = f.repo.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, stderrors.Is(err, repository.ErrEntityNotFound))

	rec, err := f.repo.GetRaw(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "soup", rec["name"])
}

func TestRepository_GetMultipleFound(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())

	loose := orm.MustTableMeta("", "loose_meals",
		orm.FieldMeta{Column: "id", Kind: orm.KindString, PrimaryKey: true},
		orm.FieldMeta{Column: "name", Kind: orm.KindString},
	)
	_, err := f.db.Exec(ctx, `INSERT INTO loose_meals (id, name) VALUES ('dup', 'a'), ('dup', 'b')`)
	require.NoError(t, err)

	r := New[*testMeal, string](f.repo.Session(), query.NewEngine(query.NewRegistry(loose, query.DefaultPolicy())), testMealMapper{})
	_, err = r.Get(ctx, "dup")
	require.Error(t, err)
	assert.True(t, errors.IsMultipleFound(err))
	assert.True(t, stderrors.Is(err, repository.ErrMultipleEntities))
	assert.Empty(t, r.Seen())
}

func TestRepository_DiscardedHiddenFromGet(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t, &testMeal{ID: "m1", Name: "soup"})

	m, err := f.repo.Get(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, m.Discard())
	require.NoError(t, f.repo.Persist(ctx, m))
	assert.Equal(t, 1, f.count(t, "id = ? AND discarded", "m1"))

	_, err = f.repo.Get(ctx, "m1")
	assert.True(t, errors.IsNotFound(err))

	rec, err := f.repo.GetRaw(ctx, "m1", repository.IncludeDiscarded())
	require.NoError(t, err)
	assert.True(t, cast.ToBool(rec["discarded"]))
}

func TestRepository_PersistRequiresTrackedReference(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t, &testMeal{ID: "m1", Name: "soup"})

	impostor := &testMeal{ID: "m1", Name: "changed"}
	err := f.repo.Persist(ctx, impostor)
	require.Error(t, err)
	assert.True(t, errors.IsUsage(err))

	first, err := f.repo.Get(ctx, "m1")
	require.NoError(t, err)
	second, err := f.repo.Get(ctx, "m1")
	require.NoError(t, err)

	first.Name = "stale"
	err = f.repo.Persist(ctx, first)
	assert.True(t, errors.IsUsage(err), "a re-fetch replaces the tracked reference")
	assert.True(t, errors.IsUsage(f.repo.Persist(ctx, impostor)), "sharing an id is not enough")
	assert.Equal(t, 1, f.count(t, "name = ?", "soup"))

	second.Name = "fresh"
	require.NoError(t, f.repo.Persist(ctx, second))
	assert.Equal(t, 1, f.count(t, "name = ?", "fresh"))
	state, _ := f.repo.StateOf(second)
	assert.Equal(t, StatePersisted, state)
}

func TestRepository_MarkDirty(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t, &testMeal{ID: "m1", Name: "soup"})

	m, err := f.repo.Get(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, f.repo.MarkDirty(m))
	state, _ := f.repo.StateOf(m)
	assert.Equal(t, StateDirty, state)

	assert.True(t, errors.IsUsage(f.repo.MarkDirty(&testMeal{ID: "m1"})))
}

func TestRepository_PersistAll(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.Policy{PersistConcurrency: 2})
	f.seed(t,
		&testMeal{ID: "m1", Name: "a"},
		&testMeal{ID: "m2", Name: "b"},
		&testMeal{ID: "m3", Name: "c"},
	)

	got, err := f.repo.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, m := range got {
		m.TotalTime = intp(42)
	}
	require.NoError(t, f.repo.Add(ctx, &testMeal{ID: "m4", Name: "d", TotalTime: intp(42)}))

	require.NoError(t, f.repo.PersistAll(ctx))
	assert.Equal(t, 4, f.count(t, "total_time = ?", 42))
	for _, m := range f.repo.Seen() {
		state, ok := f.repo.StateOf(m)
		require.True(t, ok)
		assert.Equal(t, StatePersisted, state)
	}

	f.repo.Reset()
	assert.Empty(t, f.repo.Seen())
	assert.NoError(t, f.repo.PersistAll(ctx), "nothing tracked, nothing to do")
}

func TestRepository_PersistAllReturnsFirstError(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t, &testMeal{ID: "m1", Name: "a"}, &testMeal{ID: "m2", Name: "b"})

	got, err := f.repo.Query(ctx, nil, repository.WithSort("id"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	got[1].Name = ""

	err = f.repo.PersistAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeInvalidInput))
}

func TestRepository_PersistHonorsCancelledContext(t *testing.T) {
	f := setup(t, query.DefaultPolicy())
	f.seed(t, &testMeal{ID: "m1", Name: "a"})

	m, err := f.repo.Get(context.Background(), "m1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Name = "b"
	assert.ErrorIs(t, f.repo.Persist(ctx, m), context.Canceled)
	assert.Equal(t, 1, f.count(t, "name = ?", "a"))
}

func TestRepository_QueryFromStartingStatementThenPersist(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t,
		&testMeal{ID: "m1", Name: "soup", TotalTime: intp(10)},
		&testMeal{ID: "m2", Name: "soup", TotalTime: intp(40)},
	)

	start := query.NewStatement(mealsTable).Where("meals.total_time < ?", 30)
	got, err := f.repo.Query(ctx, map[string]any{"name": "soup"}, WithStartingStatement(start))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "SELECT meals.id, meals.name, meals.total_time, meals.discarded FROM meals WHERE meals.total_time < ?", start.String(),
		"the starting statement is copied, not extended")

	got[0].Name = "broth"
	require.NoError(t, f.repo.Persist(ctx, got[0]))
	assert.Equal(t, 1, f.count(t, "id = ? AND name = ?", "m1", "broth"))
	state, _ := f.repo.StateOf(got[0])
	assert.Equal(t, StatePersisted, state)
}

func TestRepository_QueryWithJoinedStartAndBaseTable(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t, &testMeal{ID: "m1", Name: "pasta night"}, &testMeal{ID: "m2", Name: "leftovers"})
	_, err := f.db.Exec(ctx, `INSERT INTO recipes (id, meal_id, name) VALUES ('r1', 'm1', 'Pasta'), ('r2', 'm2', 'Soup')`)
	require.NoError(t, err)

	start := query.NewStatement(mealsTable)
	start.Where("EXISTS (SELECT 1 FROM recipes WHERE recipes.meal_id = meals.id)")
	got, err := f.repo.Query(ctx, map[string]any{"recipe_name": "Pasta"},
		WithStartingStatement(start.JoinTable(recipesTable, query.Left, query.On(col(recipesTable, "meal_id"), col(mealsTable, "id")))),
		WithAlreadyJoined(recipesTable.ID()))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)

	rows, err := f.repo.QueryRaw(ctx, map[string]any{"recipe_name": "Soup"}, WithBaseTable(recipesTable))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r2", rows[0]["id"])

	_, err = f.repo.Query(ctx, nil, WithBaseTable(recipesTable))
	assert.True(t, errors.IsUsage(err), "entities of another table cannot be mapped")
}

func TestRepository_DistinctQuerySortedByJoinedColumn(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.DefaultPolicy())
	f.seed(t,
		&testMeal{ID: "m1", Name: "pasta night"},
		&testMeal{ID: "m3", Name: "roast"},
	)
	_, err := f.db.Exec(ctx, `INSERT INTO recipes (id, meal_id, name) VALUES ('r1', 'm1', 'Pasta'), ('r2', 'm1', 'Salad'), ('r3', 'm3', 'Pasta')`)
	require.NoError(t, err)

	got, err := f.repo.Query(ctx, map[string]any{"recipe_name": []string{"Pasta", "Salad"}, "sort": "-recipe_name"})
	require.NoError(t, err)
	require.Len(t, got, 2, "one row per meal")
	assert.Equal(t, "m1", got[0].ID, "ordered by the greatest matching recipe name")
	assert.Equal(t, "m3", got[1].ID)
}

// 兄弟任务的写入失败不会让其它实体被误标为已持久化
func TestRepository_PersistAllAttributesFailures(t *testing.T) {
	ctx := context.Background()
	f := setup(t, query.Policy{PersistConcurrency: 4})
	f.seed(t,
		&testMeal{ID: "m1", Name: "a"},
		&testMeal{ID: "m2", Name: "b"},
		&testMeal{ID: "m3", Name: "c"},
		&testMeal{ID: "m4", Name: "d"},
	)

	got, err := f.repo.Query(ctx, nil, repository.WithSort("id"))
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, m := range got {
		m.TotalTime = intp(i + 1)
	}
	got[2].TotalTime = intp(-1)

	err = f.repo.PersistAll(ctx)
	require.Error(t, err)

	bad, _ := f.repo.StateOf(got[2])
	assert.Equal(t, StateFetched, bad)
	assert.Equal(t, 0, f.count(t, "id = ? AND total_time IS NOT NULL", "m3"))
	for _, m := range got {
		if state, _ := f.repo.StateOf(m); state == StatePersisted {
			assert.Equal(t, 1, f.count(t, "id = ? AND total_time = ?", m.ID, *m.TotalTime), m.ID)
		}
	}
}
