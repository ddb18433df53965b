package postgres

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// handleDBError wraps a database error with the failed operation, keeping
// gorm.ErrRecordNotFound reachable through errors.Is
func handleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// forUpdate locks the selected rows until the surrounding transaction ends
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// applyPaginationAndSort applies pagination and sorting with SQL injection
// protection. allowed maps API sort keys to column names.
func applyPaginationAndSort(query *gorm.DB, allowed map[string]string, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	column, ok := allowed[sortBy]
	if !ok {
		column = "created_at"
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	query = query.Order(column + " " + direction).Order("id " + direction)

	// a negative limit means every row, used by exports
	switch {
	case limit == 0:
		query = query.Limit(defaultPageSize)
	case limit > maxPageSize:
		query = query.Limit(maxPageSize)
	case limit > 0:
		query = query.Limit(limit)
	}

	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
