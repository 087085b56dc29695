package launtel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"launtel-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// PlanOption is one selectable plan on the catalog page.
type PlanOption struct {
	// the value actually submitted on a plan change
	Psid  int
	Label string
	// nil when the item carries no parseable plancharge attribute
	PricePerDay *float64
	Unlimited   bool
	// "down/up" pair pulled out of the label, e.g. "250/100"
	Speed string
	// raw first-column text, kept for diagnostics
	FirstCol string
}

// Catalog is one fetch of the plan-selection page. A catalog without a
// LocationID cannot back a plan-change submission.
type Catalog struct {
	// display labels in page order
	Options []string
	// label -> psid; duplicate labels resolve last-seen-wins
	LabelToPsid map[string]int
	// empty when no current plan id could be probed
	CurrentLabel string
	// the portal's "locid"; empty when absent from the page
	LocationID string
	Plans      map[int]PlanOption
}

// Usable reports whether the page carried enough structure to display
// and change plans. An unusable catalog usually means the portal is
// mid-change.
func (c Catalog) Usable() bool {
	if len(c.Options) == 0 && c.CurrentLabel == "" {
		return false
	}
	return c.LocationID != ""
}

// the provider has used more than one convention for marking the current
// plan id; probe them in priority order and take the first value that
// parses as an integer
var currentPsidProbes = []htmlutil.AttrProbe{
	{Selector: "input[name=psid]", Attr: "value"},
	{Selector: "input[name=current_psid]", Attr: "value"},
	{Selector: "[data-current-psid]", Attr: "data-current-psid"},
}

var speedPairRegex = regexp.MustCompile(`\((\d+)\s*/\s*(\d+)\)`)

// ParseCatalog extracts the plan catalog from the plan-selection page.
// Well-formed-but-empty input yields an empty (unusable) catalog, never
// an error.
func ParseCatalog(doc *goquery.Document) Catalog {
	catalog := Catalog{
		LabelToPsid: map[string]int{},
		Plans:       map[int]PlanOption{},
	}

	currentPsid := 0
	hasCurrentPsid := false
	for _, val := range htmlutil.ProbeAttrs(doc, currentPsidProbes) {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		currentPsid = parsed
		hasCurrentPsid = true
		break
	}

	doc.Find("span.list-group-item").Each(func(_ int, item *goquery.Selection) {
		psidStr, ok := item.Attr("data-value")
		if !ok || psidStr == "" {
			return
		}
		psid, err := strconv.Atoi(psidStr)
		if err != nil {
			return
		}

		var pricePerDay *float64
		if chargeStr, ok := item.Attr("data-plancharge"); ok {
			price, err := strconv.ParseFloat(chargeStr, 64)
			if err == nil {
				pricePerDay = &price
			}
		}

		firstCol := firstColumn(item)
		target := item
		firstColText := ""
		if firstCol != nil {
			target = firstCol
			firstColText = htmlutil.CollapseText(firstCol.Text())
		}
		label := htmlutil.CollapseText(target.Text())

		speed := ""
		if groups := speedPairRegex.FindStringSubmatch(label); groups != nil {
			speed = fmt.Sprintf("%s/%s", groups[1], groups[2])
		}

		unlimited := strings.Contains(item.Text(), "Unlimited")

		if label != "" {
			catalog.LabelToPsid[label] = psid
			catalog.Options = append(catalog.Options, label)
		}
		catalog.Plans[psid] = PlanOption{
			Psid:        psid,
			Label:       label,
			PricePerDay: pricePerDay,
			Unlimited:   unlimited,
			Speed:       speed,
			FirstCol:    firstColText,
		}
	})

	if hasCurrentPsid {
		for _, label := range catalog.Options {
			if catalog.LabelToPsid[label] == currentPsid {
				catalog.CurrentLabel = label
				break
			}
		}
	}

	catalog.LocationID = doc.Find("input[name=locid]").First().AttrOr("value", "")

	return catalog
}

// first `col-*` column of the item's row layout, nil when the item has no
// column layout
func firstColumn(item *goquery.Selection) *goquery.Selection {
	row := item.Find("div.row").First()
	if row.Length() == 0 {
		return nil
	}
	var col *goquery.Selection
	row.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		classes := strings.Fields(div.AttrOr("class", ""))
		for _, class := range classes {
			if strings.HasPrefix(class, "col-") {
				col = div
				return false
			}
		}
		return true
	})
	return col
}
