package query

import (
	"fmt"
	"strings"
)

// Insert renders an INSERT of columns into table with one placeholder per
// column.
func Insert(table string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("insert into %q: no columns", table)
	}
	t, err := QuoteIdentifierSafe(table)
	if err != nil {
		return "", err
	}
	cols, err := quoteAll(columns)
	if err != nil {
		return "", err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t, strings.Join(cols, ", "), placeholders), nil
}

// Update renders an UPDATE setting columns on the row identified by key.
func Update(table string, columns []string, key string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("update %q: no columns", table)
	}
	t, err := QuoteIdentifierSafe(table)
	if err != nil {
		return "", err
	}
	k, err := QuoteIdentifierSafe(key)
	if err != nil {
		return "", err
	}
	cols, err := quoteAll(columns)
	if err != nil {
		return "", err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t, strings.Join(sets, ", "), k), nil
}

// Delete renders a DELETE of the row identified by key.
func Delete(table, key string) (string, error) {
	t, err := QuoteIdentifierSafe(table)
	if err != nil {
		return "", err
	}
	k, err := QuoteIdentifierSafe(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t, k), nil
}

// CountBy renders a per-value row count of column.
func CountBy(table, column string) (string, error) {
	t, err := QuoteIdentifierSafe(table)
	if err != nil {
		return "", err
	}
	c, err := QuoteIdentifierSafe(column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s ORDER BY %s", c, t, c, c), nil
}

func quoteAll(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		q, err := QuoteIdentifierSafe(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}
