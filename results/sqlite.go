package results

import (
	"strings"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS results (
	label TEXT NOT NULL,
	feature TEXT NOT NULL,
	sparsity REAL NOT NULL,
	window_lower REAL,
	window_upper REAL,
	base_mean REAL,
	l2fc REAL,
	p REAL,
	padj REAL,
	incorporator INTEGER NOT NULL,
	domain TEXT,
	phylum TEXT,
	class TEXT,
	tax_order TEXT,
	family TEXT,
	genus TEXT,
	species TEXT
)`

const insert = `INSERT INTO results (
	label, feature, sparsity, window_lower, window_upper, base_mean, l2fc, p, padj, incorporator,
	domain, phylum, class, tax_order, family, genus, species
) VALUES (
	:label, :feature, :sparsity, :window_lower, :window_upper, :base_mean, :l2fc, :p, :padj, :incorporator,
	:domain, :phylum, :class, :tax_order, :family, :genus, :species
)`

// OpenSQLite opens (creating if needed) a results database.
func OpenSQLite(path string) (*sqlx.DB, error) {
	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return db, nil
}

// SaveSQLite appends rows to the results table in a single transaction.
func SaveSQLite(db *sqlx.DB, rows []Row) error {
	tx, err := db.Beginx()
	if err != nil {
		return pfx.Err(err)
	}

	stmt, err := tx.PrepareNamed(insert)
	if err != nil {
		tx.Rollback()
		return pfx.Err(err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r); err != nil {
			tx.Rollback()
			return pfx.Err(err)
		}
	}

	return pfx.Err(tx.Commit())
}

// LoadSQLite reads back every row for label, or all rows if label is empty.
func LoadSQLite(db *sqlx.DB, label string) ([]Row, error) {
	rows := []Row{}

	var err error
	if label == "" {
		err = db.Select(&rows, "SELECT * FROM results ORDER BY rowid")
	} else {
		err = db.Select(&rows, "SELECT * FROM results WHERE label = ? ORDER BY rowid", label)
	}

	return rows, pfx.Err(err)
}
