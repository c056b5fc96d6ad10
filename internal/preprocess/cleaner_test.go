package preprocess

import (
	"io"
	"testing"

	"reviewguard/domain/review"
	"reviewguard/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCleaner() *Cleaner {
	return NewCleaner(EnglishStopwords(), internal.NewLoggerTo(io.Discard, internal.LogLevelError))
}

func TestCleanContent(t *testing.T) {
	c := newTestCleaner()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"stopwords removed case-insensitively", "The food was GREAT and The staff friendly", "food great staff friendly"},
		{"punctuation split into tokens", "Amazing food! Best restaurant-in town.", "amazing food best restaurant in town"},
		{"punctuated stopword survives the stopword pass", "the, food", "the food"},
		{"empty", "", ""},
		{"only stopwords", "it is what it is", ""},
		{"unicode letters kept", "Café crème brûlée", "café crème brûlée"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CleanContent(tt.in))
		})
	}
}

func TestFormatJoinDate(t *testing.T) {
	got, err := FormatJoinDate("March 2015")
	require.NoError(t, err)
	assert.Equal(t, "01/03/2015", got)

	got, err = FormatJoinDate(" December 2009 ")
	require.NoError(t, err)
	assert.Equal(t, "01/12/2009", got)

	_, err = FormatJoinDate("2015-03-01")
	assert.Error(t, err)
}

func TestCleanDate(t *testing.T) {
	assert.Equal(t, "2012-05-01", CleanDate("\n2012-05-01"))
	assert.Equal(t, "2012-05-01", CleanDate("2012-05-01"))
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	in := []review.Review{
		{ReviewID: "r1", Date: "\n2014-01-02", YelpJoinDate: "June 2010", Content: "The Best pasta!"},
		{ReviewID: "r2", Date: "2014-01-03", YelpJoinDate: "not a date", Content: "Cold soup"},
	}
	out := newTestCleaner().Clean(in)

	require.Len(t, out, 2)
	assert.Equal(t, "2014-01-02", out[0].Date)
	assert.Equal(t, "01/06/2010", out[0].YelpJoinDate)
	assert.Equal(t, "best pasta", out[0].Content)
	assert.Equal(t, "not a date", out[1].YelpJoinDate)
	assert.Equal(t, "cold soup", out[1].Content)

	assert.Equal(t, "\n2014-01-02", in[0].Date)
	assert.Equal(t, "The Best pasta!", in[0].Content)
}

func TestEnglishStopwords(t *testing.T) {
	set := EnglishStopwords()
	assert.Contains(t, set, "the")
	assert.Contains(t, set, "wouldn't")
	assert.NotContains(t, set, "food")

	set["food"] = struct{}{}
	assert.NotContains(t, EnglishStopwords(), "food", "each call returns an independent set")
}
