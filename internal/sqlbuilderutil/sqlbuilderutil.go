// Package sqlbuilderutil derives sqlbuilder table metadata from the struct
// tags on the model types.
package sqlbuilderutil

import (
	"fmt"
	"strings"

	"fknsrs.biz/p/reflectutil"
	"fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytmeta/internal/stringutil"
)

// Table wraps a sqlbuilder table so columns can be looked up by Go field
// name, lowercased field name, or column name interchangeably.
type Table struct {
	*sqlbuilder.Table
	nameMap map[string]string
}

func (t *Table) C(name string) *sqlbuilder.BasicColumn {
	if columnName, ok := t.nameMap[name]; ok {
		name = columnName
	}

	return t.Table.C(name)
}

// MakeTable reads a model struct and builds its table description. The table
// name comes from the `sql:",table:x"` tag parameter; column names come from
// the tag value when present and snake_cased field names otherwise. Fields
// tagged `sql:"-"` are left out.
func MakeTable(v interface{}) (*Table, error) {
	s, err := reflectutil.GetDescription(v)
	if err != nil {
		return nil, fmt.Errorf("sqlbuilderutil.MakeTable: could not get struct description: %w", err)
	}

	tableName := ""
	nameMap := make(map[string]string)

	var columnNames []string

	for _, f := range s.Fields().WithoutTagValue("sql", "-") {
		sqlTag := f.Tag("sql")

		columnName := stringutil.PascalToSnake(f.Name())
		if sqlTag != nil && sqlTag.Value() != "" {
			columnName = sqlTag.Value()
		}

		columnNames = append(columnNames, columnName)

		nameMap[f.Name()] = columnName
		nameMap[strings.ToLower(f.Name())] = columnName
		nameMap[columnName] = columnName

		if sqlTag != nil {
			if tableParameter := sqlTag.Parameter("table"); tableParameter != nil {
				tableName = tableParameter.Value()
			}
		}
	}

	if tableName == "" {
		tableName = stringutil.PascalToSnake(s.Name())
	}

	return &Table{
		Table:   sqlbuilder.NewTable(tableName, columnNames...),
		nameMap: nameMap,
	}, nil
}

func MustMakeTable(v interface{}) *Table {
	t, err := MakeTable(v)
	if err != nil {
		panic(err)
	}

	return t
}
