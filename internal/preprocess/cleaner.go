package preprocess

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"reviewguard/domain/review"
	"reviewguard/internal"
)

// wordPattern matches the tokens kept from review text.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

const joinDateLayout = "January 2006"

// Cleaner normalises raw review rows before feature engineering.
type Cleaner struct {
	stopwords map[string]struct{}
	logger    *internal.Logger
}

// NewCleaner creates a cleaner that strips the given stopwords. Lookups are
// done on lower-cased words, so the set should hold lower-case entries.
func NewCleaner(stopwords map[string]struct{}, logger *internal.Logger) *Cleaner {
	if stopwords == nil {
		stopwords = map[string]struct{}{}
	}
	if logger == nil {
		logger = internal.DefaultLogger.Named("Cleaner")
	}
	return &Cleaner{stopwords: stopwords, logger: logger}
}

// Clean returns cleaned copies of reviews; the input is not modified.
func (c *Cleaner) Clean(reviews []review.Review) []review.Review {
	out := make([]review.Review, len(reviews))
	badJoinDates := 0
	for i, r := range reviews {
		r.Date = CleanDate(r.Date)
		if r.YelpJoinDate != "" {
			formatted, err := FormatJoinDate(r.YelpJoinDate)
			if err != nil {
				badJoinDates++
			} else {
				r.YelpJoinDate = formatted
			}
		}
		r.Content = c.CleanContent(r.Content)
		out[i] = r
	}
	if badJoinDates > 0 {
		c.logger.Warn("%d reviews have an unparseable yelpJoinDate; left unchanged", badJoinDates)
	}
	c.logger.Info("cleaned %d reviews", len(out))
	return out
}

// CleanContent removes stopwords, keeps word tokens and lower-cases the text.
// Stopwords are matched on whitespace-separated words before tokenizing, so a
// word with trailing punctuation ("the,") is kept and tokenized.
func (c *Cleaner) CleanContent(text string) string {
	kept := make([]string, 0, 16)
	for _, word := range strings.Fields(text) {
		if _, stop := c.stopwords[strings.ToLower(word)]; stop {
			continue
		}
		kept = append(kept, word)
	}
	tokens := wordPattern.FindAllString(strings.Join(kept, " "), -1)
	return strings.ToLower(strings.Join(tokens, " "))
}

// CleanDate drops a leading newline left over from scraping.
func CleanDate(date string) string {
	return strings.TrimPrefix(date, "\n")
}

// FormatJoinDate rewrites "January 2006" as "01/01/2006" (day/month/year,
// day pinned to the first).
func FormatJoinDate(value string) (string, error) {
	t, err := time.Parse(joinDateLayout, strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("parse join date %q: %w", value, err)
	}
	return fmt.Sprintf("01/%02d/%04d", int(t.Month()), t.Year()), nil
}
