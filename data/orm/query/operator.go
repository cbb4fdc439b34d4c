package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/menu-planning/backend-sub003/data/orm"
)

// Operator 过滤运算符
type Operator string

const (
	Equals    Operator = "="
	NotEquals Operator = "<>"
	Gt        Operator = ">"
	Gte       Operator = ">="
	Lt        Operator = "<"
	Lte       Operator = "<="
	In        Operator = "IN"
	NotIn     Operator = "NOT IN"
	Is        Operator = "IS"
	IsNot     Operator = "IS NOT"
	Like      Operator = "LIKE"
	// NotExists 关系否定，渲染为沿连接路径的关联 NOT EXISTS 子查询
	NotExists Operator = "NOT EXISTS"
)

type postfix struct {
	suffix string
	op     Operator
}

// 按长度降序，保证最长后缀优先匹配
var postfixes = []postfix{
	{"_not_exists", NotExists},
	{"_not_in", NotIn},
	{"_is_not", IsNot},
	{"_like", Like},
	{"_gte", Gte},
	{"_lte", Lte},
	{"_ne", NotEquals},
	{"_gt", Gt},
	{"_lt", Lt},
}

// splitKey 把过滤键拆成声明键与显式运算符。
//
// 键本身已声明时优先按原样使用（即使以后缀结尾）；否则剥离最长匹配的后缀。
// op 为空表示未指定后缀，按值形态推断。
func splitKey(key string, declared func(string) bool) (base string, op Operator, ok bool) {
	if declared(key) {
		return key, "", true
	}
	for _, p := range postfixes {
		if strings.HasSuffix(key, p.suffix) {
			b := strings.TrimSuffix(key, p.suffix)
			if b != "" && declared(b) {
				return b, p.op, true
			}
			return "", "", false
		}
	}
	return "", "", false
}

// Predicate 一个已解析的过滤条件
type Predicate struct {
	Column orm.Column
	Op     Operator
	Value  any
}

// SQL 渲染条件与参数。值总是绑定为参数，IS/IS NOT 的 NULL/TRUE/FALSE 除外
func (p Predicate) SQL() (string, []any) {
	col := p.Column.Qualified()
	switch p.Op {
	case Is, IsNot:
		return col + " " + string(p.Op) + " " + literal(p.Value), nil
	case In, NotIn:
		vals, _ := collectionValues(p.Value)
		ph := placeholders(len(vals))
		if p.Op == In {
			return col + " IN (" + ph + ")", vals
		}
		// NOT IN 对 NULL 值不成立，显式保留 NULL 行
		return "(" + col + " IS NULL OR " + col + " NOT IN (" + ph + "))", vals
	case Like:
		return col + " LIKE ?", []any{"%" + cast.ToString(p.Value) + "%"}
	default:
		return col + " " + string(p.Op) + " ?", []any{p.Value}
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func literal(v any) string {
	switch b := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// collectionValues 判断值是否为集合（slice/array/set），[]byte 视为标量。
// map 视为集合，取其键并按文本排序，保证参数顺序稳定。
func collectionValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Map:
		keys := rv.MapKeys()
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k.Interface()
		}
		sort.Slice(out, func(i, j int) bool { return fmt.Sprint(out[i]) < fmt.Sprint(out[j]) })
		return out, true
	default:
		return nil, false
	}
}

func isCollection(v any) bool {
	_, ok := collectionValues(v)
	return ok
}

// resolvePredicate 根据显式运算符（可为空）与值形态确定最终条件。
// 违反值形态规则时返回原因。
func resolvePredicate(col orm.Column, op Operator, value any) (Predicate, string) {
	if col.Kind == orm.KindCollection {
		return Predicate{}, fmt.Sprintf("集合列 %s 不支持过滤", col.Qualified())
	}
	vals, coll := collectionValues(value)

	switch op {
	case "", Equals:
		switch {
		case coll:
			if len(vals) == 0 {
				return Predicate{}, "IN 的集合不能为空"
			}
			return Predicate{Column: col, Op: In, Value: value}, ""
		case value == nil:
			return Predicate{Column: col, Op: Is, Value: nil}, ""
		case col.Kind == orm.KindBool:
			b, err := cast.ToBoolE(value)
			if err != nil {
				return Predicate{}, fmt.Sprintf("bool 列 %s 的值 %v 无法转换为 bool", col.Qualified(), value)
			}
			return Predicate{Column: col, Op: Is, Value: b}, ""
		default:
			return Predicate{Column: col, Op: Equals, Value: value}, ""
		}

	case NotEquals:
		switch {
		case coll:
			return Predicate{}, "_ne 不接受集合，请使用 _not_in"
		case value == nil:
			return Predicate{Column: col, Op: IsNot, Value: nil}, ""
		case col.Kind == orm.KindBool:
			b, err := cast.ToBoolE(value)
			if err != nil {
				return Predicate{}, fmt.Sprintf("bool 列 %s 的值 %v 无法转换为 bool", col.Qualified(), value)
			}
			return Predicate{Column: col, Op: IsNot, Value: b}, ""
		default:
			return Predicate{Column: col, Op: NotEquals, Value: value}, ""
		}

	case In, NotIn:
		if !coll {
			return Predicate{}, fmt.Sprintf("%s 需要集合值", op)
		}
		if len(vals) == 0 {
			return Predicate{}, fmt.Sprintf("%s 的集合不能为空", op)
		}
		return Predicate{Column: col, Op: op, Value: value}, ""

	case Gt, Gte, Lt, Lte, Like:
		if value == nil || coll {
			return Predicate{}, fmt.Sprintf("%s 需要单个非空值", op)
		}
		if col.Kind == orm.KindBool {
			return Predicate{}, fmt.Sprintf("bool 列 %s 不支持 %s", col.Qualified(), op)
		}
		return Predicate{Column: col, Op: op, Value: value}, ""

	case Is, IsNot:
		if value == nil {
			return Predicate{Column: col, Op: op, Value: nil}, ""
		}
		if b, ok := value.(bool); ok {
			return Predicate{Column: col, Op: op, Value: b}, ""
		}
		return Predicate{}, fmt.Sprintf("%s 只接受 nil 或 bool", op)

	default:
		return Predicate{}, fmt.Sprintf("不支持的运算符 %q", op)
	}
}
