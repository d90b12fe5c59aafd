package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	srvErrors "github.com/christoofar/FogLAMP/pkg/errors"
)

// Translator converts declarative JSON query descriptors into SQL text.
// Statement assembly goes through squirrel; literal fragments (quoted
// strings, function expressions, where chains, JSON-path accessors) are
// rendered with SQLBuffer, which escapes embedded quotes.
//
// Where-clause chaining: and/or children are each wrapped in parentheses, so
// "a AND (b OR (c))" is the grouping produced by a chain a→and:b→or:c.
type Translator struct {
	sink *errorSink
}

// NewTranslator returns a stateless translator. Translation errors are
// returned to the caller; inside the storage layer they are additionally
// recorded on the store's error surface.
func NewTranslator() *Translator {
	return &Translator{}
}

func newTranslator(sink *errorSink) *Translator {
	return &Translator{sink: sink}
}

type retrieveDescriptor struct {
	Return    json.RawMessage `json:"return"`
	Aggregate json.RawMessage `json:"aggregate"`
	Where     json.RawMessage `json:"where"`
	Group     string          `json:"group"`
	Sort      json.RawMessage `json:"sort"`
	Skip      *uint64         `json:"skip"`
	Limit     *uint64         `json:"limit"`
}

type whereNode struct {
	Column    *string         `json:"column"`
	Condition *string         `json:"condition"`
	Value     json.RawMessage `json:"value"`
	And       *whereNode      `json:"and"`
	Or        *whereNode      `json:"or"`
}

type returnEntry struct {
	Column string          `json:"column"`
	JSON   json.RawMessage `json:"json"`
	Alias  string          `json:"alias"`
}

type jsonProjection struct {
	Column     string          `json:"column"`
	Properties json.RawMessage `json:"properties"`
}

type aggregateEntry struct {
	Operation string `json:"operation"`
	Column    string `json:"column"`
}

type sortEntry struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// Retrieve translates a retrieve descriptor into a SELECT against table.
// An empty payload selects everything.
func (t *Translator) Retrieve(table string, payload []byte) (string, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return t.toSQL("retrieve", sq.Select("*").From(table))
	}

	var doc retrieveDescriptor
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", t.fail("retrieve", "failed to parse JSON payload: %v", err)
	}

	var columns []string
	var err error
	switch {
	case doc.Aggregate != nil:
		columns, err = t.aggregateColumns(doc.Aggregate, doc.Group)
	case doc.Return != nil:
		columns, err = t.returnColumns(doc.Return)
	default:
		columns = []string{"*"}
	}
	if err != nil {
		return "", err
	}

	builder := sq.Select(columns...).From(table)
	if doc.Where != nil {
		clause, err := t.whereClause("retrieve", doc.Where)
		if err != nil {
			return "", err
		}
		builder = builder.Where(sq.Expr(clause))
	}
	builder, err = t.applyModifiers(builder, &doc)
	if err != nil {
		return "", err
	}
	return t.toSQL("retrieve", builder)
}

// Insert translates a column/value payload into an INSERT into table.
func (t *Translator) Insert(table string, payload []byte) (string, error) {
	members, err := decodeOrderedMembers(payload)
	if err != nil {
		return "", t.fail("insert", "failed to parse JSON payload: %v", err)
	}
	if len(members) == 0 {
		return "", t.fail("insert", "payload has no columns to insert")
	}

	columns := make([]string, 0, len(members))
	values := make([]any, 0, len(members))
	for _, m := range members {
		literal, err := t.renderValue("insert", m.value)
		if err != nil {
			return "", err
		}
		columns = append(columns, m.name)
		values = append(values, sq.Expr(literal))
	}
	return t.toSQL("insert", sq.Insert(table).Columns(columns...).Values(values...))
}

// Update translates an update payload into one or more UPDATE statements.
// The payload is either a single {values|expressions, condition} object or
// {"updates": [...]} batching several of them.
func (t *Translator) Update(table string, payload []byte) ([]string, error) {
	var batch struct {
		Updates []json.RawMessage `json:"updates"`
	}
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, t.fail("update", "failed to parse JSON payload: %v", err)
	}
	entries := batch.Updates
	if entries == nil {
		entries = []json.RawMessage{payload}
	}

	statements := make([]string, 0, len(entries))
	for _, entry := range entries {
		stmt, err := t.updateStatement(table, entry)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

func (t *Translator) updateStatement(table string, payload []byte) (string, error) {
	var doc struct {
		Values      json.RawMessage `json:"values"`
		Expressions json.RawMessage `json:"expressions"`
		Condition   json.RawMessage `json:"condition"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", t.fail("update", "failed to parse JSON payload: %v", err)
	}
	if doc.Values == nil && doc.Expressions == nil {
		return "", t.fail("update", "missing values object in payload")
	}

	builder := sq.Update(table)
	if doc.Values != nil {
		members, err := decodeOrderedMembers(doc.Values)
		if err != nil {
			return "", t.fail("update", "the values property must be an object: %v", err)
		}
		for _, m := range members {
			literal, err := t.renderValue("update", m.value)
			if err != nil {
				return "", err
			}
			builder = builder.Set(m.name, sq.Expr(literal))
		}
	}
	if doc.Expressions != nil {
		var exprs []struct {
			Column   string          `json:"column"`
			Operator string          `json:"operator"`
			Value    json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(doc.Expressions, &exprs); err != nil {
			return "", t.fail("update", "the expressions property must be an array: %v", err)
		}
		for _, e := range exprs {
			if e.Column == "" || e.Operator == "" {
				return "", t.fail("update", "expression entries need column and operator properties")
			}
			literal, err := t.renderValue("update", e.Value)
			if err != nil {
				return "", err
			}
			builder = builder.Set(e.Column, sq.Expr(fmt.Sprintf("%s %s %s", e.Column, e.Operator, literal)))
		}
	}
	if doc.Condition != nil {
		clause, err := t.whereClause("update", doc.Condition)
		if err != nil {
			return "", err
		}
		builder = builder.Where(sq.Expr(clause))
	}
	return t.toSQL("update", builder)
}

// Delete translates a delete payload into a DELETE from table. An empty
// payload deletes every row; otherwise the payload must carry a where
// clause.
func (t *Translator) Delete(table string, payload []byte) (string, error) {
	builder := sq.Delete(table)
	if len(bytes.TrimSpace(payload)) > 0 {
		var doc struct {
			Where json.RawMessage `json:"where"`
		}
		if err := json.Unmarshal(payload, &doc); err != nil {
			return "", t.fail("delete", "failed to parse JSON payload: %v", err)
		}
		if doc.Where == nil {
			return "", t.fail("delete", "JSON does not contain where clause")
		}
		clause, err := t.whereClause("delete", doc.Where)
		if err != nil {
			return "", err
		}
		builder = builder.Where(sq.Expr(clause))
	}
	return t.toSQL("delete", builder)
}

func (t *Translator) aggregateColumns(raw json.RawMessage, group string) ([]string, error) {
	var entries []aggregateEntry
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, t.fail("aggregate", "each element in the aggregate array must be an object: %v", err)
		}
	} else {
		var single aggregateEntry
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, t.fail("aggregate", "the aggregate property must be an object: %v", err)
		}
		entries = []aggregateEntry{single}
	}

	columns := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		if e.Operation == "" {
			return nil, t.fail("aggregate", "missing property \"operation\"")
		}
		if e.Column == "" {
			return nil, t.fail("aggregate", "missing property \"column\"")
		}
		columns = append(columns, fmt.Sprintf("%s(%s) AS \"%s_%s\"", e.Operation, e.Column, e.Operation, e.Column))
	}
	if group != "" {
		columns = append(columns, group)
	}
	return columns, nil
}

func (t *Translator) returnColumns(raw json.RawMessage) ([]string, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, t.fail("retrieve", "the return property must be an array")
	}

	columns := make([]string, 0, len(entries))
	for _, e := range entries {
		trimmed := bytes.TrimSpace(e)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			var column string
			if err := json.Unmarshal(e, &column); err != nil {
				return nil, t.fail("retrieve", "invalid return entry: %v", err)
			}
			columns = append(columns, column)
			continue
		}

		var entry returnEntry
		if err := json.Unmarshal(e, &entry); err != nil {
			return nil, t.fail("retrieve", "invalid return entry: %v", err)
		}
		var buf SQLBuffer
		switch {
		case entry.Column != "":
			buf.Append(entry.Column)
		case entry.JSON != nil:
			if err := t.jsonPath(entry.JSON, &buf); err != nil {
				return nil, err
			}
		default:
			return nil, t.fail("retrieve", "return entries need a column or json property")
		}
		if entry.Alias != "" {
			buf.Append(" AS \"").Append(entry.Alias).AppendByte('"')
		}
		columns = append(columns, buf.Coalesce())
	}
	return columns, nil
}

// jsonPath renders {column, properties} as column->'p1'->'p2'.
func (t *Translator) jsonPath(raw json.RawMessage, buf *SQLBuffer) error {
	var proj jsonProjection
	if err := json.Unmarshal(raw, &proj); err != nil {
		return t.fail("retrieve", "the json property must be an object: %v", err)
	}
	if proj.Column == "" {
		return t.fail("retrieve", "the json property is missing a column property")
	}
	if proj.Properties == nil {
		return t.fail("retrieve", "the json property is missing a properties property")
	}

	buf.Append(proj.Column)
	trimmed := bytes.TrimSpace(proj.Properties)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var segments []string
		if err := json.Unmarshal(proj.Properties, &segments); err != nil {
			return t.fail("retrieve", "the properties property must hold strings: %v", err)
		}
		for _, seg := range segments {
			buf.Append("->").Quote(seg)
		}
	} else {
		var segment string
		if err := json.Unmarshal(proj.Properties, &segment); err != nil {
			return t.fail("retrieve", "the properties property must hold strings: %v", err)
		}
		buf.Append("->").Quote(segment)
	}
	return nil
}

func (t *Translator) whereClause(operation string, raw json.RawMessage) (string, error) {
	var node whereNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return "", t.fail(operation, "the \"where\" property must be a JSON object: %v", err)
	}
	var buf SQLBuffer
	if err := t.renderWhere(operation, &node, &buf); err != nil {
		return "", err
	}
	return buf.Coalesce(), nil
}

func (t *Translator) renderWhere(operation string, node *whereNode, buf *SQLBuffer) error {
	if node.Column == nil {
		return t.fail(operation, "the \"where\" object is missing a \"column\" property")
	}
	if node.Condition == nil {
		return t.fail(operation, "the \"where\" object is missing a \"condition\" property")
	}
	if node.Value == nil {
		return t.fail(operation, "the \"where\" object is missing a \"value\" property")
	}

	buf.Append(*node.Column).AppendByte(' ').Append(*node.Condition).AppendByte(' ')
	trimmed := bytes.TrimSpace(node.Value)
	switch {
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(node.Value, &s); err != nil {
			return t.fail(operation, "invalid string value in where clause: %v", err)
		}
		buf.Quote(s)
	case isIntegerLiteral(trimmed):
		buf.Append(string(trimmed))
	default:
		return t.fail(operation, "unsupported value type in where clause")
	}

	if node.And != nil {
		buf.Append(" AND (")
		if err := t.renderWhere(operation, node.And, buf); err != nil {
			return err
		}
		buf.AppendByte(')')
	}
	if node.Or != nil {
		buf.Append(" OR (")
		if err := t.renderWhere(operation, node.Or, buf); err != nil {
			return err
		}
		buf.AppendByte(')')
	}
	return nil
}

func (t *Translator) applyModifiers(builder sq.SelectBuilder, doc *retrieveDescriptor) (sq.SelectBuilder, error) {
	if doc.Sort != nil {
		var entries []sortEntry
		trimmed := bytes.TrimSpace(doc.Sort)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(doc.Sort, &entries); err != nil {
				return builder, t.fail("retrieve", "each element in the sort array must be an object: %v", err)
			}
		} else {
			var single sortEntry
			if err := json.Unmarshal(doc.Sort, &single); err != nil {
				return builder, t.fail("retrieve", "the sort property must be an object: %v", err)
			}
			entries = []sortEntry{single}
		}
		for _, e := range entries {
			if e.Column == "" {
				return builder, t.fail("retrieve", "missing property \"column\" in sort")
			}
			direction := e.Direction
			if direction == "" {
				direction = "ASC"
			}
			builder = builder.OrderBy(e.Column + " " + direction)
		}
	}
	if doc.Group != "" {
		builder = builder.GroupBy(doc.Group)
	}
	if doc.Skip != nil {
		builder = builder.Offset(*doc.Skip)
	}
	if doc.Limit != nil {
		builder = builder.Limit(*doc.Limit)
	}
	return builder, nil
}

// renderValue renders an insert/update value as a SQL literal. Strings of
// the function-call form pass through verbatim, other strings are quoted
// with escaping, numbers are numeric literals and nested objects are
// serialized to JSON and quoted.
func (t *Translator) renderValue(operation string, raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", t.fail(operation, "empty value in payload")
	}
	var buf SQLBuffer
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", t.fail(operation, "invalid string value: %v", err)
		}
		buf.AppendStringValue(s)
	case '{':
		compact := &bytes.Buffer{}
		if err := json.Compact(compact, trimmed); err != nil {
			return "", t.fail(operation, "invalid JSON object value: %v", err)
		}
		buf.Quote(compact.String())
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", t.fail(operation, "unsupported value type in payload")
		}
		buf.Append(n.String())
	}
	return buf.Coalesce(), nil
}

func (t *Translator) toSQL(operation string, builder sq.Sqlizer) (string, error) {
	sql, _, err := builder.ToSql()
	if err != nil {
		return "", t.fail(operation, "failed to build SQL: %v", err)
	}
	return sql, nil
}

// fail records the translation error against the operation name and returns
// it to the caller.
func (t *Translator) fail(operation, format string, args ...any) error {
	if t.sink != nil {
		t.sink.raise(operation, format, args...)
	}
	return srvErrors.NewTranslationError(operation, format, args...)
}

type jsonMember struct {
	name  string
	value json.RawMessage
}

// decodeOrderedMembers walks a JSON object with a token decoder so the
// member order of the payload is preserved in the generated SQL.
func decodeOrderedMembers(data []byte) ([]jsonMember, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var members []jsonMember
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		members = append(members, jsonMember{name: key, value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

func isIntegerLiteral(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	start := 0
	if b[0] == '-' || b[0] == '+' {
		start = 1
	}
	if start == len(b) {
		return false
	}
	for _, c := range b[start:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
