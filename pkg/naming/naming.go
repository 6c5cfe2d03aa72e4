// Package naming derives UNDR file names and ISO 8601 dates from the
// free-form file names found in third-party datasets.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
)

// Separators are stripped from both ends of a stem once the date is removed.
const Separators = "-':.!,\r\n\t\f\v "

const separatorClass = `[-':.!,\s\v]?`

var (
	dateTimePattern = regexp.MustCompile(
		`(20[012]\d)` + separatorClass + `(\d{2})` + separatorClass + `(\d{2})` +
			`T?(\d{2})` + separatorClass + `(\d{2})` + separatorClass + `(\d{2})` +
			`(Z|[+-][01]\d:\d{2}|[+-][01]\d\d{2}|[+-][01]\d)?`)

	datePattern = regexp.MustCompile(
		`(20[012]\d)` + separatorClass + `(\d{2})` + separatorClass + `(\d{2})`)
)

// CamelToSnake converts a camel case string to snake case.
//
// Whitespace, '.', '-', '(', ')' and '_' become underscores. A run of
// capitals is split before its last letter when a lower-case letter
// follows ("DVSFlow" gives "dvs_flow").
func CamelToSnake(s string) string {
	result := make([]rune, 0, len(s)+4)
	lower := false
	manyUpper := false
	for index, character := range []rune(s) {
		switch {
		case unicode.IsUpper(character):
			if lower {
				result = append(result, '_', unicode.ToLower(character))
			} else {
				result = append(result, unicode.ToLower(character))
				manyUpper = index > 0
			}
			lower = false
		case unicode.IsSpace(character) || strings.ContainsRune(".-()_", character):
			result = append(result, '_')
			lower = false
			manyUpper = false
		default:
			if manyUpper {
				last := result[len(result)-1]
				result = append(result[:len(result)-1], '_', last, character)
			} else {
				result = append(result, character)
			}
			lower = true
			manyUpper = false
		}
	}
	return string(result)
}

// StemAndDate extracts the date embedded in a file stem and returns the
// remaining stem in snake case.
//
// The first matching prefix in trimPrefixes and the first matching suffix in
// trimSuffixes are removed before searching. A full date-time is preferred
// over a bare date. Dates without a time zone are UTC. date is empty when the
// stem contains no date.
func StemAndDate(stem string, trimPrefixes, trimSuffixes []string) (string, string, error) {
	stem = strings.TrimSpace(stem)
	for _, prefix := range trimPrefixes {
		if strings.HasPrefix(stem, prefix) {
			stem = stem[len(prefix):]
			break
		}
	}
	for _, suffix := range trimSuffixes {
		if suffix != "" && strings.HasSuffix(stem, suffix) {
			stem = stem[:len(stem)-len(suffix)]
			break
		}
	}

	var date string
	match := dateTimePattern.FindStringSubmatchIndex(stem)
	if match != nil {
		groups := submatches(stem, match)
		location, err := parseZone(groups[7])
		if err != nil {
			return "", "", err
		}
		parsed, err := buildDate(groups[1:7], location)
		if err != nil {
			return "", "", err
		}
		date = formatDate(parsed)
	} else {
		match = datePattern.FindStringSubmatchIndex(stem)
		if match != nil {
			groups := submatches(stem, match)
			parsed, err := buildDate(append(groups[1:4], "00", "00", "00"), time.UTC)
			if err != nil {
				return "", "", err
			}
			date = formatDate(parsed)
		}
	}
	if match != nil {
		stem = stem[:match[0]] + stem[match[1]:]
	}
	return CamelToSnake(strings.Trim(stem, Separators)), date, nil
}

func submatches(s string, match []int) []string {
	groups := make([]string, len(match)/2)
	for i := range groups {
		if match[2*i] >= 0 {
			groups[i] = s[match[2*i]:match[2*i+1]]
		}
	}
	return groups
}

// parseZone handles "Z", "±hh:mm", "±hhmm" and "±hh".
func parseZone(zone string) (*time.Location, error) {
	if zone == "" || zone == "Z" {
		return time.UTC, nil
	}
	hours, err := strconv.Atoi(zone[1:3])
	if err != nil {
		return nil, errors.NewValidationError("zone", zone, err.Error())
	}
	minutes := 0
	if len(zone) > 3 {
		minutes, err = strconv.Atoi(zone[len(zone)-2:])
		if err != nil {
			return nil, errors.NewValidationError("zone", zone, err.Error())
		}
	}
	offset := hours*3600 + minutes*60
	if zone[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(zone, offset), nil
}

var componentNames = [...]string{"year", "month", "day", "hour", "minute", "second"}

func buildDate(components []string, location *time.Location) (time.Time, error) {
	var values [6]int
	for i, component := range components {
		value, err := strconv.Atoi(component)
		if err != nil {
			return time.Time{}, errors.NewValidationError(componentNames[i], component, err.Error())
		}
		values[i] = value
	}
	date := time.Date(values[0], time.Month(values[1]), values[2], values[3], values[4], values[5], 0, location)
	// time.Date normalizes out-of-range components, so compare the round trip.
	if date.Year() != values[0] || int(date.Month()) != values[1] || date.Day() != values[2] ||
		date.Hour() != values[3] || date.Minute() != values[4] || date.Second() != values[5] {
		return time.Time{}, errors.NewValidationError("date", strings.Join(components, "-"),
			fmt.Sprintf("invalid date %04d-%02d-%02d %02d:%02d:%02d",
				values[0], values[1], values[2], values[3], values[4], values[5]))
	}
	return date, nil
}

func formatDate(date time.Time) string {
	return strings.Replace(date.Format("2006-01-02T15:04:05-07:00"), "+00:00", "Z", 1)
}
