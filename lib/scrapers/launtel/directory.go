package launtel

import (
	"regexp"
	"strconv"
	"strings"

	"launtel-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Service is one subscribed line as rendered on the service directory.
// Produced fresh on every fetch; values are never mutated in place.
type Service struct {
	Title string
	// stable provider identifier, the service's identity
	ServiceID int
	// reference token keying the plan-catalog page
	AvcID string
	// account-scoped identifier required by the change endpoint
	UserID string
	// e.g. "Fibre 250/100 Mbps"; empty when the card doesn't carry one
	SpeedLabel string
	// true while the provider is mid-transition on this service
	ChangeInProgress bool
}

var pauseActionRegex = regexp.MustCompile(`(?:un)?pauseService\((\d+)`)
var speedTierLabel = regexp.MustCompile(`(?i)technology\s*/\s*speed\s*tier`)
var statusLabel = regexp.MustCompile(`(?i)status`)

// ParseServices extracts every complete service card from the directory
// page. Cards missing a title, a derivable service id, an avcid or a user
// id are dropped silently; one malformed card never aborts the listing.
func ParseServices(doc *goquery.Document) []Service {
	var services []Service

	doc.Find("div.service-card").Each(func(_ int, card *goquery.Selection) {
		title := htmlutil.CollapseText(card.Find("span.service-title-txt").First().Text())

		serviceId, ok := serviceIdFromCard(card)
		if !ok {
			return
		}
		avcid := card.AttrOr("id", "")
		userId := userIdFromCard(card)
		if title == "" || avcid == "" || userId == "" {
			return
		}

		speedLabel := ""
		if dd, ok := htmlutil.FindLabelValue(card, speedTierLabel); ok {
			speedLabel = htmlutil.CollapseText(dd.Text())
		}

		changeInProgress := false
		if dd, ok := htmlutil.FindLabelValue(card, statusLabel); ok {
			changeInProgress = strings.Contains(dd.Text(), "Change in progress")
		}

		services = append(services, Service{
			Title:            title,
			ServiceID:        serviceId,
			AvcID:            avcid,
			UserID:           userId,
			SpeedLabel:       speedLabel,
			ChangeInProgress: changeInProgress,
		})
	})

	return services
}

// the numeric service id only appears as the argument of the card's
// pause/unpause onclick handler
func serviceIdFromCard(card *goquery.Selection) (int, bool) {
	id := 0
	found := false
	card.Find("button[onclick]").EachWithBreak(func(_ int, button *goquery.Selection) bool {
		onclick := button.AttrOr("onclick", "")
		groups := pauseActionRegex.FindStringSubmatch(onclick)
		if len(groups) < 2 {
			return true
		}
		parsed, err := strconv.Atoi(groups[1])
		if err != nil {
			return true
		}
		id = parsed
		found = true
		return false
	})
	return id, found
}

// the user id is the third `=`-delimited segment of the usage-chart
// anchor's href
func userIdFromCard(card *goquery.Selection) string {
	link := card.Find("i.fa-bar-chart").First().Parent()
	href, ok := link.Attr("href")
	if !ok {
		return ""
	}
	parts := strings.Split(href, "=")
	if len(parts) <= 2 {
		return ""
	}
	return parts[2]
}
