package launtel

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func docFromString(t *testing.T, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

const directoryPage = `
<html><body>
<div class="service-card" id="AVC000111222">
	<span class="service-title-txt">Home Fibre</span>
	<a href="/usage?avcid=AVC000111222&amp;uid=78910"><i class="fa-bar-chart"></i></a>
	<button onclick="pauseService(123456, 'Home Fibre')">Pause</button>
	<dl>
		<dt>Technology / Speed Tier</dt>
		<dd>Fibre
			250/100 Mbps</dd>
		<dt>Status</dt>
		<dd>Active</dd>
	</dl>
</div>
<div class="service-card" id="AVC000333444">
	<span class="service-title-txt">Shack</span>
	<a href="/usage?avcid=AVC000333444&amp;uid=11213"><i class="fa-bar-chart"></i></a>
	<button onclick="unpauseService(654321)">Unpause</button>
	<dl>
		<dt>Status</dt>
		<dd>Change in progress - please wait</dd>
	</dl>
</div>
</body></html>`

func TestParseServices(t *testing.T) {
	services := ParseServices(docFromString(t, directoryPage))

	expect := []Service{
		{
			Title:            "Home Fibre",
			ServiceID:        123456,
			AvcID:            "AVC000111222",
			UserID:           "78910",
			SpeedLabel:       "Fibre 250/100 Mbps",
			ChangeInProgress: false,
		},
		{
			Title:            "Shack",
			ServiceID:        654321,
			AvcID:            "AVC000333444",
			UserID:           "11213",
			SpeedLabel:       "",
			ChangeInProgress: true,
		},
	}
	if diff := cmp.Diff(expect, services); diff != "" {
		t.Fatalf("unexpected services (-want +got):\n%s", diff)
	}
}

func TestParseServicesDropsIncompleteCards(t *testing.T) {
	cases := []struct {
		name string
		html string
	}{
		{
			name: "missing title",
			html: `<div class="service-card" id="AVC1">
				<a href="/usage?a=b&c=1"><i class="fa-bar-chart"></i></a>
				<button onclick="pauseService(1)">Pause</button>
			</div>`,
		},
		{
			name: "missing service id",
			html: `<div class="service-card" id="AVC1">
				<span class="service-title-txt">Home</span>
				<a href="/usage?a=b&c=1"><i class="fa-bar-chart"></i></a>
				<button onclick="showDetails()">Details</button>
			</div>`,
		},
		{
			name: "missing avcid",
			html: `<div class="service-card">
				<span class="service-title-txt">Home</span>
				<a href="/usage?a=b&c=1"><i class="fa-bar-chart"></i></a>
				<button onclick="pauseService(1)">Pause</button>
			</div>`,
		},
		{
			name: "missing user id",
			html: `<div class="service-card" id="AVC1">
				<span class="service-title-txt">Home</span>
				<a href="/usage?a=b"><i class="fa-bar-chart"></i></a>
				<button onclick="pauseService(1)">Pause</button>
			</div>`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			services := ParseServices(docFromString(t, c.html))
			require.Empty(t, services)
		})
	}
}

func TestParseServicesEmptyPage(t *testing.T) {
	services := ParseServices(docFromString(t, `<html><body></body></html>`))
	require.Empty(t, services)
}
