// Package sqlquery evaluates a single SELECT statement against a stream
// of JSON rows (spec §4.4): WHERE is solved per-row against the row's own
// JSON tree (dotted paths resolve through nested objects), projection
// keeps either every field or a named subset, and LIMIT/OFFSET are
// applied to the filtered, ordered result — never pushed into the
// storage layer.
//
// Parsing is delegated entirely to github.com/freeeve/machparse; this
// package only walks the resulting AST.
package sqlquery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/freeeve/machparse"
	"github.com/freeeve/machparse/ast"
	"github.com/freeeve/machparse/token"

	"github.com/feeddb/feeddb/errs"
	"github.com/feeddb/feeddb/jsonval"
)

// Query is a parsed, ready-to-evaluate SELECT.
type Query struct {
	Keyspace string
	star     bool
	columns  []projectedColumn
	where    ast.Expr
	limit    int
	offset   int
}

type projectedColumn struct {
	path  string
	alias string
}

// Parse parses a single SELECT statement. Anything other than a SELECT
// (INSERT, UPDATE, DDL, ...) is rejected — the dispatcher's /_sql
// endpoint is read-only.
func Parse(sql string) (*Query, error) {
	stmt, err := machparse.Parse(sql)
	if err != nil {
		return nil, errs.Wrap(errs.SqlError, err)
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok {
		return nil, errs.Wrap(errs.SqlError, fmt.Errorf("sqlquery: only SELECT statements are supported"))
	}

	q := &Query{}
	q.where = sel.Where

	ks, err := tableName(sel.From)
	if err != nil {
		return nil, err
	}
	q.Keyspace = ks

	for _, col := range sel.Columns {
		switch c := col.(type) {
		case *ast.StarExpr:
			q.star = true
		case *ast.AliasedExpr:
			name, ok := ast.Expr(c.Expr).(*ast.ColName)
			if !ok {
				return nil, errs.Wrap(errs.SqlError, fmt.Errorf("sqlquery: only column references may be projected"))
			}
			q.columns = append(q.columns, projectedColumn{path: name.Name(), alias: c.Alias})
		default:
			return nil, errs.Wrap(errs.SqlError, fmt.Errorf("sqlquery: unsupported select expression %T", col))
		}
	}

	if sel.Limit != nil {
		if sel.Limit.Count != nil {
			n, err := literalInt(sel.Limit.Count)
			if err != nil {
				return nil, err
			}
			q.limit = n
		}
		if sel.Limit.Offset != nil {
			n, err := literalInt(sel.Limit.Offset)
			if err != nil {
				return nil, err
			}
			q.offset = n
		}
	}

	return q, nil
}

// Limit reports the parsed LIMIT, or 0 if unset.
func (q *Query) Limit() int { return q.limit }

// Offset reports the parsed OFFSET, or 0 if unset.
func (q *Query) Offset() int { return q.offset }

// Matches reports whether row satisfies the WHERE clause. A query with
// no WHERE clause matches every row.
func (q *Query) Matches(row jsonval.Object) bool {
	if q.where == nil {
		return true
	}
	return jsonval.Truthy(eval(q.where, row))
}

// Project returns the subset of row named by the SELECT list, or row
// itself unchanged for SELECT *.
func (q *Query) Project(row jsonval.Object) jsonval.Object {
	if q.star || len(q.columns) == 0 {
		return row
	}
	out := make(jsonval.Object, len(q.columns))
	for _, c := range q.columns {
		name := c.alias
		if name == "" {
			name = c.path
		}
		out[name] = jsonval.NestedValue(c.path, any(row))
	}
	return out
}

func tableName(from ast.TableExpr) (string, error) {
	switch t := from.(type) {
	case *ast.TableName:
		return t.Name(), nil
	case *ast.AliasedTableExpr:
		return tableName(t.Expr)
	default:
		return "", errs.Wrap(errs.SqlError, fmt.Errorf("sqlquery: unsupported FROM clause %T", from))
	}
}

func literalInt(e ast.Expr) (int, error) {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return 0, errs.Wrap(errs.SqlError, fmt.Errorf("sqlquery: LIMIT/OFFSET must be a literal integer"))
	}
	n, err := strconv.Atoi(lit.Value)
	if err != nil {
		return 0, errs.Wrap(errs.SqlError, err)
	}
	return n, nil
}

// eval resolves an expression against row, the same way json_nested_value
// + solve_where does in the original evaluator: columns resolve through
// the row's own JSON tree, AND/OR/NOT treat nil and false as false,
// and comparisons fall back to lexicographic ordering when either side
// isn't numeric.
func eval(e ast.Expr, row jsonval.Object) any {
	switch n := e.(type) {
	case nil:
		return nil
	case *ast.ParenExpr:
		return eval(n.Expr, row)
	case *ast.ColName:
		return jsonval.NestedValue(n.Name(), any(row))
	case *ast.Literal:
		return literalValue(n)
	case *ast.UnaryExpr:
		if n.Op == token.NOT {
			return !jsonval.Truthy(eval(n.Operand, row))
		}
		return nil
	case *ast.IsExpr:
		v := eval(n.Expr, row)
		isNull := v == nil
		if n.Not {
			return !isNull
		}
		return isNull
	case *ast.BetweenExpr:
		v := eval(n.Expr, row)
		low := eval(n.Low, row)
		high := eval(n.High, row)
		in := jsonval.Compare(v, low) >= 0 && jsonval.Compare(v, high) <= 0
		if n.Not {
			return !in
		}
		return in
	case *ast.InExpr:
		v := eval(n.Expr, row)
		found := false
		for _, ve := range n.Values {
			if jsonval.Equal(v, eval(ve, row)) {
				found = true
				break
			}
		}
		if n.Not {
			return !found
		}
		return found
	case *ast.LikeExpr:
		v := jsonval.AsString(eval(n.Expr, row))
		pattern := jsonval.AsString(eval(n.Pattern, row))
		matched := globMatch(pattern, v)
		if n.Not {
			return !matched
		}
		return matched
	case *ast.BinaryExpr:
		return evalBinary(n, row)
	default:
		return nil
	}
}

func evalBinary(n *ast.BinaryExpr, row jsonval.Object) any {
	switch n.Op {
	case token.AND:
		return jsonval.Truthy(eval(n.Left, row)) && jsonval.Truthy(eval(n.Right, row))
	case token.OR:
		return jsonval.Truthy(eval(n.Left, row)) || jsonval.Truthy(eval(n.Right, row))
	}

	l := eval(n.Left, row)
	r := eval(n.Right, row)
	switch n.Op {
	case token.EQ:
		return jsonval.Equal(l, r)
	case token.NEQ:
		return !jsonval.Equal(l, r)
	case token.LT:
		return jsonval.Compare(l, r) < 0
	case token.LTE:
		return jsonval.Compare(l, r) <= 0
	case token.GT:
		return jsonval.Compare(l, r) > 0
	case token.GTE:
		return jsonval.Compare(l, r) >= 0
	default:
		return nil
	}
}

func literalValue(l *ast.Literal) any {
	switch l.Type {
	case ast.LiteralNull:
		return nil
	case ast.LiteralInt, ast.LiteralFloat:
		f, err := strconv.ParseFloat(l.Value, 64)
		if err != nil {
			return l.Value
		}
		return f
	case ast.LiteralBool:
		return strings.EqualFold(l.Value, "true")
	default:
		return l.Value
	}
}

// globMatch implements SQL LIKE's % and _ wildcards against s.
func globMatch(pattern, s string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
