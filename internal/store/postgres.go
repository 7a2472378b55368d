package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"BackofficeAPI/internal/logger"
	"BackofficeAPI/internal/query"
	"BackofficeAPI/internal/schema"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const mainAlias = "main"

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres renders plans to SQL over the entity's table. Besides the table's
// own columns every row carries the match-by attribute of each relation.
type Postgres struct {
	db Querier
}

func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Find(ctx context.Context, s schema.EntitySchema, plan query.Plan) ([]Row, int64, error) {
	if err := checkWindow(plan); err != nil {
		return nil, 0, err
	}
	total, err := p.Count(ctx, s, plan.Predicate)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 || int64(plan.Offset) >= total {
		return []Row{}, total, nil
	}

	sb, err := BuildFindQuery(s, plan)
	if err != nil {
		return nil, 0, err
	}
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build find query for %s: %w", s.Entity, err)
	}
	logger.Debug("store_find_sql", map[string]any{
		"entity": s.Entity,
		"sql":    sqlStr,
		"args":   args,
	})

	rows, err := p.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", s.Entity, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, 0, fmt.Errorf("scan %s: %w", s.Entity, err)
	}
	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = attributeRow(m)
	}
	return out, total, nil
}

func (p *Postgres) Count(ctx context.Context, s schema.EntitySchema, pred query.Predicate) (int64, error) {
	sb, err := BuildCountQuery(s, pred)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query for %s: %w", s.Entity, err)
	}
	logger.Debug("store_count_sql", map[string]any{
		"entity": s.Entity,
		"sql":    sqlStr,
		"args":   args,
	})

	var n int64
	if err := p.db.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.Entity, err)
	}
	return n, nil
}

func (p *Postgres) Deactivate(ctx context.Context, s schema.EntitySchema, id any) (bool, error) {
	sqlStr, args, err := BuildDeactivateQuery(s, id).ToSql()
	if err != nil {
		return false, fmt.Errorf("build deactivate query for %s: %w", s.Entity, err)
	}
	logger.Debug("store_deactivate_sql", map[string]any{
		"entity": s.Entity,
		"sql":    sqlStr,
		"args":   args,
	})

	tag, err := p.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("deactivate %s: %w", s.Entity, err)
	}
	return tag.RowsAffected() > 0, nil
}

// BuildDeactivateQuery soft-deletes the row whose primary key is id.
func BuildDeactivateQuery(s schema.EntitySchema, id any) squirrel.UpdateBuilder {
	return squirrel.Update(quoteTable(s.Table)).PlaceholderFormat(squirrel.Dollar).
		Set(quoteIdent(ActiveColumn), false).
		Where(squirrel.Eq{quoteIdent(s.PrimaryKey): id})
}

// BuildFindQuery selects the page described by plan. The primary key is
// appended to the ORDER BY so pages are stable.
func BuildFindQuery(s schema.EntitySchema, plan query.Plan) (squirrel.SelectBuilder, error) {
	b := newSQLBuilder(s)
	sb := squirrel.SelectBuilder{}.PlaceholderFormat(squirrel.Dollar).
		Column(mainAlias + ".*").
		Columns(b.relationColumns()...).
		From(b.fromClause())

	where, err := b.where(plan.Predicate)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	sb = sb.OrderBy(b.orderBy(plan.Sort)...)
	sb = b.applyJoins(sb)

	if plan.Limit > 0 {
		sb = sb.Limit(uint64(plan.Limit))
	}
	if plan.Offset > 0 {
		sb = sb.Offset(uint64(plan.Offset))
	}
	return sb, nil
}

// BuildCountQuery counts rows matching pred. Only belongs_to relations are
// joined, so COUNT(*) never sees duplicated rows.
func BuildCountQuery(s schema.EntitySchema, pred query.Predicate) (squirrel.SelectBuilder, error) {
	b := newSQLBuilder(s)
	sb := squirrel.SelectBuilder{}.PlaceholderFormat(squirrel.Dollar).
		Column("COUNT(*)").
		From(b.fromClause())

	where, err := b.where(pred)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	return b.applyJoins(sb), nil
}

type sqlBuilder struct {
	s     schema.EntitySchema
	joins map[string]*schema.Relation // alias -> belongs_to relation
}

func newSQLBuilder(s schema.EntitySchema) *sqlBuilder {
	return &sqlBuilder{s: s, joins: make(map[string]*schema.Relation)}
}

func (b *sqlBuilder) fromClause() string {
	return quoteTable(b.s.Table) + " AS " + mainAlias
}

func (b *sqlBuilder) applyJoins(sb squirrel.SelectBuilder) squirrel.SelectBuilder {
	aliases := make([]string, 0, len(b.joins))
	for alias := range b.joins {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		rel := b.joins[alias]
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s = %s",
			quoteTable(rel.Table),
			quoteIdent(alias),
			quoteIdent(alias, schema.ToColumn(rel.Key)),
			mainColumn(rel.FK),
		))
	}
	return sb
}

func (b *sqlBuilder) where(p query.Predicate) (squirrel.Sqlizer, error) {
	switch n := p.(type) {
	case nil:
		return nil, nil
	case query.And:
		parts := make(squirrel.And, 0, len(n.Children))
		for _, c := range n.Children {
			part, err := b.where(c)
			if err != nil {
				return nil, err
			}
			if part != nil {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return parts, nil
	case query.Leaf:
		return b.leaf(n)
	default:
		return nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func (b *sqlBuilder) leaf(l query.Leaf) (squirrel.Sqlizer, error) {
	path := l.Target()
	switch len(path) {
	case 1:
		col, ok := b.column(path[0])
		if !ok {
			return nil, fmt.Errorf("%s has no column for attribute %q", b.s.Entity, path[0])
		}
		return leafCondition(l, col), nil
	case 2:
		rel, ok := b.s.RelationByAttribute(path[0])
		if !ok {
			return nil, fmt.Errorf("%s has no relation %q", b.s.Entity, path[0])
		}
		return b.relationCondition(l, rel, path[1])
	default:
		return nil, fmt.Errorf("path %s is too deep", path)
	}
}

func (b *sqlBuilder) relationCondition(l query.Leaf, rel *schema.Relation, attr string) (squirrel.Sqlizer, error) {
	alias := rel.Attribute
	col := quoteIdent(alias, schema.ToColumn(attr))

	switch rel.Kind {
	case schema.BelongsTo:
		if rel.FK == "" {
			return nil, fmt.Errorf("relation %s has no fk", rel.Attribute)
		}
		if attr == rel.Key {
			return leafCondition(l, mainColumn(rel.FK)), nil
		}
		b.joins[alias] = rel
		return leafCondition(l, col), nil

	case schema.HasMany:
		if rel.FK == "" {
			return nil, fmt.Errorf("relation %s has no fk", rel.Attribute)
		}
		sub := squirrel.Select("1").
			From(quoteTable(rel.Table) + " AS " + quoteIdent(alias)).
			Where(fmt.Sprintf("%s = %s", quoteIdent(alias, rel.FK), mainColumn(b.s.PrimaryKey))).
			Where(leafCondition(l, col))
		return exists(sub)

	case schema.ManyToMany:
		if rel.Through == "" || rel.FK == "" || rel.ThroughFK == "" {
			return nil, fmt.Errorf("relation %s needs through, fk and throughFk", rel.Attribute)
		}
		link := alias + "_link"
		sub := squirrel.Select("1").
			From(quoteTable(rel.Through) + " AS " + quoteIdent(link)).
			Join(fmt.Sprintf("%s AS %s ON %s = %s",
				quoteTable(rel.Table), quoteIdent(alias),
				quoteIdent(alias, schema.ToColumn(rel.Key)), quoteIdent(link, rel.FK))).
			Where(fmt.Sprintf("%s = %s", quoteIdent(link, rel.ThroughFK), mainColumn(b.s.PrimaryKey))).
			Where(leafCondition(l, col))
		return exists(sub)

	default:
		return nil, fmt.Errorf("relation %s has unknown kind %q", rel.Attribute, rel.Kind)
	}
}

// relationColumns selects the match-by attribute of every relation:
// belongs_to through a LEFT JOIN, to-many relations as an array.
func (b *sqlBuilder) relationColumns() []string {
	var cols []string
	seen := map[string]bool{}
	for _, name := range b.s.FieldNames() {
		rel := b.s.Fields[name].Relation
		if rel == nil || seen[rel.Attribute] {
			continue
		}
		seen[rel.Attribute] = true
		alias := rel.Attribute
		match := quoteIdent(alias, schema.ToColumn(rel.MatchBy))

		switch rel.Kind {
		case schema.BelongsTo:
			if rel.FK == "" {
				continue
			}
			b.joins[alias] = rel
			cols = append(cols, match+" AS "+quoteIdent(alias+"."+rel.MatchBy))
		case schema.HasMany:
			if rel.FK == "" {
				continue
			}
			cols = append(cols, fmt.Sprintf("ARRAY(SELECT %s FROM %s AS %s WHERE %s = %s ORDER BY 1) AS %s",
				match, quoteTable(rel.Table), quoteIdent(alias),
				quoteIdent(alias, rel.FK), mainColumn(b.s.PrimaryKey), quoteIdent(alias)))
		case schema.ManyToMany:
			if rel.Through == "" || rel.FK == "" || rel.ThroughFK == "" {
				continue
			}
			link := alias + "_link"
			cols = append(cols, fmt.Sprintf("ARRAY(SELECT %s FROM %s AS %s JOIN %s AS %s ON %s = %s WHERE %s = %s ORDER BY 1) AS %s",
				match, quoteTable(rel.Through), quoteIdent(link),
				quoteTable(rel.Table), quoteIdent(alias),
				quoteIdent(alias, schema.ToColumn(rel.Key)), quoteIdent(link, rel.FK),
				quoteIdent(link, rel.ThroughFK), mainColumn(b.s.PrimaryKey), quoteIdent(alias)))
		}
	}
	return cols
}

func exists(sub squirrel.SelectBuilder) (squirrel.Sqlizer, error) {
	sqlStr, args, err := sub.ToSql()
	if err != nil {
		return nil, err
	}
	return squirrel.Expr("EXISTS ("+sqlStr+")", args...), nil
}

func leafCondition(l query.Leaf, col string) squirrel.Sqlizer {
	switch n := l.(type) {
	case query.Equals:
		return squirrel.Eq{col: n.Value}
	case query.Like:
		return squirrel.ILike{"CAST(" + col + " AS TEXT)": "%" + escapeLike(n.Substring) + "%"}
	case query.In:
		return squirrel.Eq{col: n.Values}
	case query.Between:
		parts := squirrel.And{}
		if n.Min != nil {
			parts = append(parts, squirrel.GtOrEq{col: n.Min})
		}
		if n.Max != nil {
			parts = append(parts, squirrel.LtOrEq{col: n.Max})
		}
		return parts
	case query.DateComponentEquals:
		return squirrel.Expr(
			fmt.Sprintf("EXTRACT(MONTH FROM %s) = ? AND EXTRACT(DAY FROM %s) = ?", col, col),
			int(n.Month), n.Day,
		)
	default:
		return squirrel.Expr("FALSE")
	}
}

// orderBy resolves sort keys to columns. Keys that name no column are
// dropped, like unknown filter keys.
func (b *sqlBuilder) orderBy(keys []query.SortKey) []string {
	pk := mainColumn(b.s.PrimaryKey)
	out := make([]string, 0, len(keys)+1)
	hasPK := false
	for _, k := range keys {
		col, ok := b.sortColumn(k.Field)
		if !ok {
			logger.Debug("sort_key_dropped", map[string]any{
				"entity": b.s.Entity,
				"field":  k.Field.String(),
			})
			continue
		}
		dir := "ASC"
		if !k.Ascending {
			dir = "DESC"
		}
		if col == pk {
			hasPK = true
		}
		out = append(out, col+" "+dir)
	}
	if !hasPK {
		out = append(out, pk+" ASC")
	}
	return out
}

func (b *sqlBuilder) sortColumn(path query.Path) (string, bool) {
	switch len(path) {
	case 1:
		return b.column(path[0])
	case 2:
		rel, ok := b.s.RelationByAttribute(path[0])
		if !ok || rel.Kind != schema.BelongsTo || rel.FK == "" {
			return "", false
		}
		if path[1] == rel.Key {
			return mainColumn(rel.FK), true
		}
		b.joins[rel.Attribute] = rel
		return quoteIdent(rel.Attribute, schema.ToColumn(path[1])), true
	default:
		return "", false
	}
}

// column maps an attribute of the main entity to its qualified column. Plain
// fields and foreign-key fields are columns; the primary key is always one.
func (b *sqlBuilder) column(attr string) (string, bool) {
	if attr == schema.ToAttribute(b.s.PrimaryKey) {
		return mainColumn(b.s.PrimaryKey), true
	}
	for _, name := range b.s.FieldNames() {
		if schema.ToAttribute(name) != attr {
			continue
		}
		switch rel := b.s.Fields[name].Relation; {
		case rel == nil:
			return mainColumn(name), true
		case rel.ForeignKey && rel.Kind == schema.BelongsTo:
			if rel.FK != "" {
				return mainColumn(rel.FK), true
			}
			return mainColumn(name), true
		}
	}
	return "", false
}

func mainColumn(name string) string {
	return mainAlias + "." + pgx.Identifier{name}.Sanitize()
}

func quoteIdent(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// attributeRow renames snake_case columns to camelCase attributes. A column
// named "relation.attr" becomes a nested row; a NULL one leaves the relation nil.
func attributeRow(m map[string]any) Row {
	out := make(Row, len(m))
	for col, v := range m {
		rel, attr, nested := strings.Cut(col, ".")
		if !nested {
			out[schema.ToAttribute(col)] = v
			continue
		}
		key := schema.ToAttribute(rel)
		if v == nil {
			if _, ok := out[key]; !ok {
				out[key] = nil
			}
			continue
		}
		related, _ := out[key].(Row)
		if related == nil {
			related = Row{}
			out[key] = related
		}
		related[schema.ToAttribute(attr)] = v
	}
	return out
}
