package query

import (
	"context"

	"github.com/menu-planning/backend-sub003/data/db/dialect"
	"github.com/menu-planning/backend-sub003/data/orm"
)

var (
	mealsTable = orm.MustTableMeta("", "meals",
		orm.FieldMeta{Column: "id", Kind: orm.KindString, PrimaryKey: true},
		orm.FieldMeta{Column: "name", Kind: orm.KindString},
		orm.FieldMeta{Column: "author_id", Kind: orm.KindString},
		orm.FieldMeta{Column: "total_time", Kind: orm.KindNumeric, Nullable: true},
		orm.FieldMeta{Column: "liked", Kind: orm.KindBool, Nullable: true},
		orm.FieldMeta{Column: "tag_list", Kind: orm.KindCollection},
	)
	recipesTable = orm.MustTableMeta("", "recipes",
		orm.FieldMeta{Column: "id", Kind: orm.KindString, PrimaryKey: true},
		orm.FieldMeta{Column: "meal_id", Kind: orm.KindString},
		orm.FieldMeta{Column: "name", Kind: orm.KindString},
		orm.FieldMeta{Column: "total_time", Kind: orm.KindNumeric, Nullable: true},
	)
	tagsTable = orm.MustTableMeta("", "recipe_tags",
		orm.FieldMeta{Column: "id", Kind: orm.KindString, PrimaryKey: true},
		orm.FieldMeta{Column: "recipe_id", Kind: orm.KindString},
		orm.FieldMeta{Column: "key", Kind: orm.KindString},
		orm.FieldMeta{Column: "value", Kind: orm.KindString},
	)

	sqlite = dialect.New("sqlite")
)

const mealColumns = "meals.id, meals.name, meals.author_id, meals.total_time, meals.liked, meals.tag_list"

func col(t *orm.TableMeta, name string) orm.Column {
	c, ok := t.Column(name)
	if !ok {
		panic("no column " + name)
	}
	return c
}

func mealsRegistry(policy Policy) *Registry {
	r := NewRegistry(mealsTable, policy)
	r.MustAddJoin(Hop{Table: recipesTable, From: mealsTable.ID(), On: []JoinOn{On(col(recipesTable, "meal_id"), col(mealsTable, "id"))}})
	r.MustAddJoin(Hop{Table: tagsTable, From: recipesTable.ID(), On: []JoinOn{On(col(tagsTable, "recipe_id"), col(recipesTable, "id"))}})
	r.MustAddMapper(NewColumnMapper(mealsTable, SameName("id", "name", "author_id", "total_time", "liked", "tag_list")...))
	r.MustAddMapper(NewColumnMapper(recipesTable,
		Bind("recipe_id", "id"),
		Bind("recipe_name", "name"),
		Bind("recipe_total_time", "total_time"),
	))
	r.MustAddMapper(NewColumnMapper(tagsTable,
		Bind("tag_key", "key"),
		Bind("tag_value", "value"),
	))
	return r
}

func mealsEngine() *Engine {
	return NewEngine(mealsRegistry(DefaultPolicy()))
}

// fakeSession 记录查询并返回预置记录
type fakeSession struct {
	dialect dialect.Dialect
	rows    []orm.Record
	queries []string
	args    [][]any
}

func (s *fakeSession) ID() string                { return "fake" }
func (s *fakeSession) Dialect() dialect.Dialect { return s.dialect }

func (s *fakeSession) Query(ctx context.Context, q string, args ...any) ([]orm.Record, error) {
	s.queries = append(s.queries, q)
	s.args = append(s.args, args)
	return s.rows, nil
}

func (s *fakeSession) Merge(ctx context.Context, table *orm.TableMeta, rec orm.Record) error {
	return nil
}

func (s *fakeSession) Flush(ctx context.Context) error { return nil }

func (s *fakeSession) Upsert(ctx context.Context, table *orm.TableMeta, rec orm.Record) error {
	return nil
}

type meal struct {
	ID   string
	Name string
}

type mealMapper struct{}

func (mealMapper) ToRecord(ctx context.Context, sess orm.ISession, m *meal) (orm.Record, error) {
	return orm.Record{"id": m.ID, "name": m.Name}, nil
}

func (mealMapper) ToDomain(rec orm.Record) (*meal, error) {
	return &meal{ID: rec["id"].(string), Name: rec["name"].(string)}, nil
}
