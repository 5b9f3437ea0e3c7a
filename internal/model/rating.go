package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Rating is the ordinal star rating of a catalog listing.
// The catalog encodes it as a CSS class word ("One" through "Five").
type Rating int

const (
	// RatingUnknown is the zero value. It never appears in an accepted Record.
	RatingUnknown Rating = iota
	// RatingOne is a one star rating.
	RatingOne
	// RatingTwo is a two star rating.
	RatingTwo
	// RatingThree is a three star rating.
	RatingThree
	// RatingFour is a four star rating.
	RatingFour
	// RatingFive is a five star rating.
	RatingFive
)

// ratingWords maps the rating to the word used by the catalog mark-up.
var ratingWords = map[Rating]string{
	RatingOne:   "One",
	RatingTwo:   "Two",
	RatingThree: "Three",
	RatingFour:  "Four",
	RatingFive:  "Five",
}

// String returns the catalog word for the rating ("One" .. "Five").
func (r Rating) String() string {
	if w, ok := ratingWords[r]; ok {
		return w
	}
	return "Unknown"
}

// Stars returns the numeric value of the rating, 0 for RatingUnknown.
func (r Rating) Stars() int {
	if r.Valid() {
		return int(r)
	}
	return 0
}

// Valid reports whether r is one of the five known levels.
func (r Rating) Valid() bool {
	return r >= RatingOne && r <= RatingFive
}

// ParseRating converts a rating word into a Rating.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseRating(word string) (Rating, error) {
	// A Caser keeps state, so one is built per call.
	normalized := cases.Title(language.English).String(strings.TrimSpace(word))
	for r, w := range ratingWords {
		if w == normalized {
			return r, nil
		}
	}
	return RatingUnknown, fmt.Errorf("unknown rating %q", word)
}

// MarshalText encodes the rating as its catalog word.
func (r Rating) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a catalog word into the rating.
func (r *Rating) UnmarshalText(text []byte) error {
	parsed, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
