package gormsti

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dbsmedya/gosti/internal/types"
	"github.com/dbsmedya/gosti/sti"
)

// Materialize turns raw rows into records of their concrete types, as if
// each had been loaded through proto. Rows whose discriminator does not
// resolve keep proto's type and are counted as unresolved.
func Materialize(resolver *sti.Resolver, proto sti.Record, rows []map[string]any, connection string) ([]sti.Record, *types.MaterializeStats, error) {
	requested := resolver.TypeOf(proto)
	stats := types.NewMaterializeStats(requested)
	start := time.Now()

	out := make([]sti.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := resolver.NewFromBuilder(proto, normalizeRow(row), connection)
		if err != nil {
			return out, stats, fmt.Errorf("row %d: %w", i, err)
		}

		concrete := resolver.TypeOf(rec)
		stats.Add(concrete)
		if disc, ok := resolver.Discriminator(rec); ok && disc != concrete {
			stats.AddUnresolved(disc)
		}
		out = append(out, rec)
	}

	stats.Duration = time.Since(start)
	return out, stats, nil
}

// Find loads the rows of proto's table through db, scoped to proto's type
// unless db carries SkipScope, and materializes them.
func Find(db *gorm.DB, resolver *sti.Resolver, proto sti.Record, connection string) ([]sti.Record, *types.MaterializeStats, error) {
	tx := db.Table(resolver.Table(proto))

	name := resolver.TypeOf(proto)
	skip, _ := db.Get(SkipScope)
	if skip != true && resolver.Scoped(name) {
		tx = tx.Where(map[string]any{resolver.Key(): name})
	}

	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	return Materialize(resolver, proto, rows, connection)
}

// normalizeRow converts driver byte slices to strings.
func normalizeRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out
}
