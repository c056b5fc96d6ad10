package migration

import (
	"context"
	"fmt"
	"regexp"

	"reviewguard/internal/errors"

	"github.com/jmoiron/sqlx"
)

var columnName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CreateReviewTables creates the review, reviewer and restaurant tables of a
// review database. statColumns are extra numeric reviewer columns
// (friendCount, fanCount, ...).
func CreateReviewTables(ctx context.Context, db *sqlx.DB, statColumns []string) error {
	reviewer := `
		CREATE TABLE reviewer (
			reviewerID TEXT PRIMARY KEY,
			name TEXT,
			location TEXT,
			yelpJoinDate TEXT`
	for _, c := range statColumns {
		if !columnName.MatchString(c) {
			return errors.InvalidInput(fmt.Sprintf("invalid reviewer column name %q", c))
		}
		reviewer += ",\n\t\t\t" + c + " INTEGER"
	}
	reviewer += "\n\t\t)"

	statements := []string{
		`CREATE TABLE review (
			reviewID TEXT PRIMARY KEY,
			reviewerID TEXT,
			restaurantID TEXT,
			date TEXT,
			rating INTEGER,
			usefulCount INTEGER,
			reviewContent TEXT,
			flagged TEXT CHECK(flagged IN ('Y', 'N'))
		)`,
		reviewer,
		`CREATE TABLE restaurant (
			restaurantID TEXT PRIMARY KEY,
			rating REAL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.DatabaseError("failed to create review tables", err)
		}
	}
	return nil
}
