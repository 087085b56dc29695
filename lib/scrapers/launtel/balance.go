package launtel

import (
	"regexp"
	"strconv"
	"strings"

	"launtel-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var balanceLabel = regexp.MustCompile(`(?i)current\s+balance`)
var amountRegex = regexp.MustCompile(`([+\-]?)\$?([0-9,]+\.?[0-9]*)`)
var balancePhraseRegex = regexp.MustCompile(`(?i)current\s+balance[:\s]*([+\-]?)\$?([0-9,]+\.?[0-9]*)`)

// ParseBalance pulls the account balance off the service-directory page.
// Three tiers, most specific first: the Current Balance label/value pair,
// the balance card, then a plain-text search of the whole page. A page
// with none of them yields (0, false), never an error.
func ParseBalance(doc *goquery.Document) (float64, bool) {
	if dd, ok := htmlutil.FindLabelValue(doc.Selection, balanceLabel); ok {
		if amount, ok := parseAmount(dd.Find("span").First().Text()); ok {
			return amount, true
		}
	}

	card := doc.Find("div.card-balance").First()
	if card.Length() > 0 {
		span := card.Find("dd").First().Find("span").First()
		if amount, ok := parseAmount(span.Text()); ok {
			return amount, true
		}
	}

	groups := balancePhraseRegex.FindStringSubmatch(doc.Text())
	if groups != nil {
		if amount, ok := signedAmount(groups[1], groups[2]); ok {
			return amount, true
		}
	}

	return 0, false
}

func parseAmount(text string) (float64, bool) {
	groups := amountRegex.FindStringSubmatch(strings.TrimSpace(text))
	if groups == nil {
		return 0, false
	}
	return signedAmount(groups[1], groups[2])
}

// a literal "-" prefix negates the magnitude; "+" or no sign is positive
func signedAmount(sign, magnitude string) (float64, bool) {
	amount, err := strconv.ParseFloat(strings.ReplaceAll(magnitude, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if sign == "-" {
		amount = -amount
	}
	return amount, true
}
