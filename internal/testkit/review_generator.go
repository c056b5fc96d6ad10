package testkit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"reviewguard/adapters/sqlite"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/internal/migration"

	"github.com/jmoiron/sqlx"
)

var authenticReviews = []string{
	"Great food and excellent service. The staff was very friendly and attentive.",
	"I had a wonderful experience here. The ambiance is nice and the food was delicious.",
	"The restaurant has a cozy atmosphere. Food quality is good but a bit pricey.",
	"Nice place for a family dinner. Kids enjoyed the meal. Service was prompt.",
	"Average experience. Food was okay but nothing special. Service could be better.",
	"Disappointed with the service. Food took too long to arrive and was cold.",
	"Amazing food! Best restaurant in town. Highly recommend the pasta dishes.",
	"Good value for money. Portions are generous and food tastes great.",
	"The restaurant is clean and well-maintained. Staff is professional.",
	"Had a pleasant dinner here. The dessert menu is particularly good.",
}

var fakeReviews = []string{
	"This place is absolutely amazing! Best restaurant ever! Five stars!",
	"Perfect in every way! Outstanding service and food! Highly recommend!",
	"Excellent! Wonderful! Fantastic! This restaurant is the best!",
	"Amazing food! Great service! Perfect atmosphere! Love it!",
	"Best restaurant! Excellent quality! Outstanding experience!",
	"Terrible place! Worst food ever! Do not go here!",
	"Horrible service! Bad food! Waste of money!",
	"This restaurant is terrible! Poor quality! Avoid at all costs!",
	"Worst experience! Bad food and service! Not recommended!",
	"Poor quality! Terrible service! Would not recommend!",
}

var reviewerNames = []string{
	"John Smith", "Sarah Johnson", "Mike Davis", "Emily Brown",
	"David Wilson", "Lisa Anderson", "Chris Taylor", "Amy Martinez",
	"Robert Thomas", "Jennifer White", "James Harris", "Michelle Clark",
}

var locations = []string{
	"New York, NY", "Los Angeles, CA", "Chicago, IL", "Houston, TX",
	"Phoenix, AZ", "Philadelphia, PA", "San Antonio, TX", "San Diego, CA",
}

// ReviewerStatColumns are the numeric reviewer columns the generator fills,
// with the upper bound of each uniform draw.
var ReviewerStatColumns = []struct {
	Name string
	Max  int
}{
	{"friendCount", 300},
	{"reviewCount", 150},
	{"firstCount", 10},
	{"usefulCount", 400},
	{"coolCount", 200},
	{"funnyCount", 150},
	{"complimentCount", 100},
	{"tipCount", 30},
	{"fanCount", 25},
}

// ReviewGeneratorConfig configures the review database generator
type ReviewGeneratorConfig struct {
	ReviewCount     int       `json:"review_count"`
	ReviewerCount   int       `json:"reviewer_count"`
	RestaurantCount int       `json:"restaurant_count"`
	FakeRate        float64   `json:"fake_rate"`
	JoinStart       time.Time `json:"join_start"`
	JoinSpanDays    int       `json:"join_span_days"`
	ReviewEnd       time.Time `json:"review_end"`
	ReviewSpanDays  int       `json:"review_span_days"`
	Seed            int64     `json:"seed"`
}

// DefaultReviewConfig returns the sample database layout: 200 reviews by 20
// reviewers over 12 restaurants, 30% of them fake.
func DefaultReviewConfig() ReviewGeneratorConfig {
	return ReviewGeneratorConfig{
		ReviewCount:     200,
		ReviewerCount:   20,
		RestaurantCount: 12,
		FakeRate:        0.3,
		JoinStart:       time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		JoinSpanDays:    2000,
		ReviewEnd:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		ReviewSpanDays:  730,
		Seed:            42,
	}
}

// GenerationSummary reports what was written
type GenerationSummary struct {
	Path        string `json:"path"`
	Reviews     int    `json:"reviews"`
	Fake        int    `json:"fake"`
	Authentic   int    `json:"authentic"`
	Reviewers   int    `json:"reviewers"`
	Restaurants int    `json:"restaurants"`
}

// ReviewDataGenerator writes a synthetic review database
type ReviewDataGenerator struct {
	config ReviewGeneratorConfig
	rng    *rand.Rand
	logger *internal.Logger
}

// NewReviewDataGenerator creates a new review data generator
func NewReviewDataGenerator(config ReviewGeneratorConfig, logger *internal.Logger) *ReviewDataGenerator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ReviewDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
		logger: logger.Named("Generator"),
	}
}

type restaurantRow struct {
	id     string
	rating float64
}

// CreateDatabase replaces any file at path with a freshly generated database
func (g *ReviewDataGenerator) CreateDatabase(ctx context.Context, path string) (*GenerationSummary, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.IOError(fmt.Sprintf("failed to remove existing database %s", path), err)
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	summary, err := g.Populate(ctx, db)
	if err != nil {
		return nil, err
	}
	summary.Path = path
	g.logger.Info("created %s: %d reviews (%d fake, %d authentic), %d reviewers, %d restaurants",
		path, summary.Reviews, summary.Fake, summary.Authentic, summary.Reviewers, summary.Restaurants)
	return summary, nil
}

// Populate creates the review tables in db and fills them
func (g *ReviewDataGenerator) Populate(ctx context.Context, db *sqlx.DB) (*GenerationSummary, error) {
	cfg := g.config
	if cfg.ReviewerCount <= 0 || cfg.RestaurantCount <= 0 || cfg.ReviewCount < 0 {
		return nil, errors.InvalidInput("generator needs at least one reviewer and one restaurant")
	}

	stats := make([]string, len(ReviewerStatColumns))
	for i, c := range ReviewerStatColumns {
		stats[i] = c.Name
	}
	if err := migration.CreateReviewTables(ctx, db, stats); err != nil {
		return nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	reviewerIDs, err := g.insertReviewers(ctx, tx, stats)
	if err != nil {
		return nil, err
	}
	restaurants, err := g.insertRestaurants(ctx, tx)
	if err != nil {
		return nil, err
	}
	summary, err := g.insertReviews(ctx, tx, reviewerIDs, restaurants)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.DatabaseError("failed to commit generated data", err)
	}
	summary.Reviewers = len(reviewerIDs)
	summary.Restaurants = len(restaurants)
	return summary, nil
}

func (g *ReviewDataGenerator) insertReviewers(ctx context.Context, tx *sqlx.Tx, stats []string) ([]string, error) {
	query := "INSERT INTO reviewer (reviewerID, name, location, yelpJoinDate"
	values := "?, ?, ?, ?"
	for _, c := range stats {
		query += ", " + c
		values += ", ?"
	}
	query += ") VALUES (" + values + ")"

	ids := make([]string, 0, g.config.ReviewerCount)
	for i := 1; i <= g.config.ReviewerCount; i++ {
		id := fmt.Sprintf("R%04d", i)
		joined := g.config.JoinStart.AddDate(0, 0, g.rng.Intn(g.config.JoinSpanDays+1))
		args := []interface{}{
			id,
			reviewerNames[g.rng.Intn(len(reviewerNames))],
			locations[g.rng.Intn(len(locations))],
			joined.Format("January 2006"),
		}
		for _, c := range ReviewerStatColumns {
			args = append(args, g.rng.Intn(c.Max+1))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, errors.DatabaseError("failed to insert reviewer", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (g *ReviewDataGenerator) insertRestaurants(ctx context.Context, tx *sqlx.Tx) ([]restaurantRow, error) {
	rows := make([]restaurantRow, 0, g.config.RestaurantCount)
	for i := 1; i <= g.config.RestaurantCount; i++ {
		r := restaurantRow{
			id:     fmt.Sprintf("RES%04d", i),
			rating: math.Round((3.0+g.rng.Float64()*1.5)*10) / 10,
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO restaurant (restaurantID, rating) VALUES (?, ?)`, r.id, r.rating); err != nil {
			return nil, errors.DatabaseError("failed to insert restaurant", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// insertReviews draws each review independently: fake reviews get an extreme
// rating, a low useful count and templated text.
func (g *ReviewDataGenerator) insertReviews(ctx context.Context, tx *sqlx.Tx, reviewerIDs []string, restaurants []restaurantRow) (*GenerationSummary, error) {
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO review (reviewID, reviewerID, restaurantID, date, rating, usefulCount, reviewContent, flagged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, errors.DatabaseError("failed to prepare review insert", err)
	}
	defer stmt.Close()

	summary := &GenerationSummary{Reviews: g.config.ReviewCount}
	for i := 1; i <= g.config.ReviewCount; i++ {
		reviewerID := reviewerIDs[g.rng.Intn(len(reviewerIDs))]
		restaurant := restaurants[g.rng.Intn(len(restaurants))]

		var (
			flagged string
			rating  int
			text    string
			useful  int
		)
		if g.rng.Float64() < g.config.FakeRate {
			summary.Fake++
			flagged = "Y"
			rating = []int{1, 5}[g.rng.Intn(2)]
			text = fakeReviews[g.rng.Intn(len(fakeReviews))]
			useful = g.rng.Intn(6)
		} else {
			summary.Authentic++
			flagged = "N"
			rating = g.rng.Intn(5) + 1
			text = authenticReviews[g.rng.Intn(len(authenticReviews))]
			useful = g.rng.Intn(21)
		}
		date := g.config.ReviewEnd.AddDate(0, 0, -g.rng.Intn(g.config.ReviewSpanDays+1))

		if _, err := stmt.ExecContext(ctx, fmt.Sprintf("REV%05d", i), reviewerID, restaurant.id,
			date.Format("2006-01-02"), rating, useful, text, flagged); err != nil {
			return nil, errors.DatabaseError("failed to insert review", err)
		}
	}
	return summary, nil
}
