package core

import (
	"fmt"
	"strings"
)

// reconstruct turns the flat rows of a joined select back into nested
// records. Grouped and projected queries bypass reconstruction: their rows
// are already in final shape.
func (t *Table) reconstruct(rows []Record) ([]Record, error) {
	included := includedRelations(t.rels)
	if len(included) == 0 || len(t.group) > 0 || len(t.projection) > 0 {
		return rows, nil
	}

	main, err := t.mainSchema()
	if err != nil {
		return nil, err
	}

	groups := groupRows(rows, keyColumn(main))

	out := make([]Record, 0, len(groups))
	for _, g := range groups {
		entity, err := t.buildEntity(g, main, included)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// keyColumn returns the alias rows of this schema are grouped by. Without a
// primary key every flat row forms its own group, since rows cannot be told
// apart reliably.
func keyColumn(s *Schema) string {
	if pk := s.PrimaryKey(); pk != nil {
		return pk.Alias
	}
	return ""
}

// groupRows partitions rows into runs sharing the same key value, preserving
// the order in which keys first appear. An empty key puts each row in its own
// group.
func groupRows(rows []Record, key string) [][]Record {
	if key == "" {
		out := make([][]Record, len(rows))
		for i, r := range rows {
			out[i] = []Record{r}
		}
		return out
	}

	var out [][]Record
	index := make(map[string]int)
	for _, r := range rows {
		k := groupKey(r[key])
		if i, ok := index[k]; ok {
			out[i] = append(out[i], r)
			continue
		}
		index[k] = len(out)
		out = append(out, []Record{r})
	}
	return out
}

// groupKey normalizes a key value for map lookup. Drivers may return the same
// key as int64 on one row and []byte on another, so everything is compared
// through its string form.
func groupKey(v any) string {
	switch k := v.(type) {
	case nil:
		return "\x00"
	case string:
		return k
	case []byte:
		return string(k)
	}
	return fmt.Sprintf("%v", v)
}

// buildEntity assembles one record from a group of flat rows: the schema's
// own columns from the first row, then each included relationship recursively.
// A 1:1 relationship with no match nests nil; a 1:n relationship nests the
// deduplicated child records in row order.
func (t *Table) buildEntity(group []Record, s *Schema, rels []*Relation) (Record, error) {
	entity := make(Record, s.Len()+len(rels))
	for _, c := range s.Columns() {
		entity[c.Name] = group[0][c.Alias]
	}

	for _, rel := range rels {
		if !rel.included {
			continue
		}
		rs, err := t.relationSchema(rel)
		if err != nil {
			return nil, err
		}

		children := activeChildren(rel)

		if rel.Card == One {
			if allNull(group[0], rs) {
				entity[rel.Name] = nil
				continue
			}
			nested, err := t.buildEntity(group, rs, children)
			if err != nil {
				return nil, err
			}
			entity[rel.Name] = nested
			continue
		}

		many := make([]Record, 0, len(group))
		for _, childGroup := range groupChildRows(group, rs) {
			nested, err := t.buildEntity(childGroup, rs, children)
			if err != nil {
				return nil, err
			}
			many = append(many, nested)
		}
		entity[rel.Name] = many
	}

	return entity, nil
}

func activeChildren(rel *Relation) []*Relation {
	var out []*Relation
	for _, c := range rel.Children() {
		if c.included {
			out = append(out, c)
		}
	}
	return out
}

// allNull reports whether every column of the namespaced schema is NULL in
// row. That is the signature of an unmatched LEFT JOIN.
func allNull(row Record, s *Schema) bool {
	for _, c := range s.Columns() {
		if v, ok := row[c.Alias]; ok && v != nil {
			return false
		}
	}
	return true
}

// groupChildRows partitions a parent group's rows by child identity, dropping
// rows where the child side is entirely NULL. Identity is the child's primary
// key when it has one, otherwise the tuple of all child column values.
func groupChildRows(group []Record, s *Schema) [][]Record {
	key := keyColumn(s)

	var out [][]Record
	index := make(map[string]int)
	for _, r := range group {
		if allNull(r, s) {
			continue
		}
		k := childKey(r, s, key)
		if i, ok := index[k]; ok {
			out[i] = append(out[i], r)
			continue
		}
		index[k] = len(out)
		out = append(out, []Record{r})
	}
	return out
}

func childKey(r Record, s *Schema, key string) string {
	if key != "" {
		return groupKey(r[key])
	}
	var b strings.Builder
	for _, c := range s.Columns() {
		b.WriteString(groupKey(r[c.Alias]))
		b.WriteByte('\x1f')
	}
	return b.String()
}
