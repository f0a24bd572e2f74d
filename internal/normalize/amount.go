package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var amountRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ExtractAmount pulls a funding ceiling in EUR out of free text like
// "bis zu 550.000 Euro" or "zwischen 25.000 und 100.000 EUR". German
// thousands-separator dots are stripped and decimal commas converted before
// matching. Of all numbers found, the largest wins: free-text funding
// descriptions quote their maximum most prominently. Returns 0 when the text
// contains no number.
func ExtractAmount(text string) float64 {
	cleaned := strings.ReplaceAll(text, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	var max float64
	for _, m := range amountRe.FindAllString(cleaned, -1) {
		if v, err := strconv.ParseFloat(m, 64); err == nil && v > max {
			max = v
		}
	}
	return max
}
