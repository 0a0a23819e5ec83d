package db

import (
	"fmt"
	"sort"
)

// TableStats describes one table's contribution to the database file.
type TableStats struct {
	Name     string  `json:"name"`
	RowCount int64   `json:"row_count"`
	SizeMB   float64 `json:"size_mb"`
}

// DatabaseStats summarizes the database file for the admin surface.
type DatabaseStats struct {
	TotalSizeMB float64      `json:"total_size_mb"`
	PageCount   int64        `json:"page_count"`
	PageSize    int64        `json:"page_size"`
	Tables      []TableStats `json:"tables"`
}

// GetDatabaseStats reports the database file size and per-table row counts
// and sizes, largest table first. Per-table sizes come from the dbstat
// virtual table when the SQLite build has it; otherwise the file's data
// pages are apportioned by row count.
func (db *DB) GetDatabaseStats() (*DatabaseStats, error) {
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to read page_size: %w", err)
	}

	stats := &DatabaseStats{
		TotalSizeMB: float64(pageCount*pageSize) / (1024 * 1024),
		PageCount:   pageCount,
		PageSize:    pageSize,
	}

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	var totalRows int64
	counts := make(map[string]int64, len(names))
	for _, name := range names {
		var n int64
		// Table names come from sqlite_master, not user input; the
		// double quotes keep odd names intact.
		if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", name, err)
		}
		counts[name] = n
		totalRows += n
	}

	sizes := make(map[string]float64, len(names))
	if sizeRows, err := db.Query(`SELECT name, SUM(pgsize) FROM dbstat GROUP BY name`); err == nil {
		for sizeRows.Next() {
			var name string
			var bytes int64
			if err := sizeRows.Scan(&name, &bytes); err != nil {
				sizeRows.Close()
				return nil, fmt.Errorf("failed to scan dbstat row: %w", err)
			}
			sizes[name] = float64(bytes) / (1024 * 1024)
		}
		sizeRows.Close()
	} else if totalRows > 0 {
		for _, name := range names {
			sizes[name] = stats.TotalSizeMB * float64(counts[name]) / float64(totalRows)
		}
	}

	for _, name := range names {
		stats.Tables = append(stats.Tables, TableStats{
			Name:     name,
			RowCount: counts[name],
			SizeMB:   sizes[name],
		})
	}

	sort.Slice(stats.Tables, func(i, j int) bool {
		return stats.Tables[i].SizeMB > stats.Tables[j].SizeMB
	})

	return stats, nil
}
