package launtel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"launtel-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/launtel")

const DefaultBaseUrl = "https://residential.launtel.net.au"

// loginFormSentinel appearing in any page body means the portal fell back
// to rendering the login form instead of the requested page.
var loginFormSentinel = []byte(`name="username"`)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	username string
	password string

	// guards the check-then-login transition so concurrent callers
	// never issue two login requests
	mu       sync.Mutex
	loggedIn bool

	breaker *gobreaker.CircuitBreaker
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl  string
	Username string
	Password string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/launtel/http")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "launtel-portal",
		Interval: time.Minute * 5,
		Timeout:  time.Minute * 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("portal circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		username: opts.Username,
		password: opts.Password,
		breaker:  breaker,
	}, nil
}

// Login submits credentials to the portal. It does not retry; retry policy
// belongs to the caller.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": c.username,
			"password": c.password,
		}).
		Post("/login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return fmt.Errorf("%w: %w", ErrPortalUnavailable, err)
	}

	// a rejected login re-renders the login form with a 200
	if res.StatusCode() >= 400 || bytes.Contains(res.Body(), loginFormSentinel) {
		span.SetStatus(codes.Error, ErrAuthentication.Error())
		return ErrAuthentication
	}

	c.loggedIn = true
	return nil
}

// ensureLogin performs a login only if the session isn't authenticated
// yet. Safe to call concurrently; at most one login request is issued.
func (c *Client) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	return c.Login(ctx)
}

// fetchPage gets an authenticated portal page. When the portal answers
// with the login form instead (session expired server-side), it re-logs-in
// once and retries the fetch.
func (c *Client) fetchPage(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	body, err := c.getPage(ctx, path, query)
	if err == nil || !errors.Is(err, ErrAuthentication) {
		return body, err
	}

	slog.DebugContext(ctx, "session rejected by portal, re-logging-in", "path", path)
	c.mu.Lock()
	c.loggedIn = false
	loginErr := c.Login(ctx)
	c.mu.Unlock()
	if loginErr != nil {
		return nil, loginErr
	}
	return c.getPage(ctx, path, query)
}

func (c *Client) getPage(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		res, err := c.Http.R().
			SetContext(ctx).
			SetQueryParams(query).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPortalUnavailable, err)
		}
		if !res.IsSuccess() {
			return nil, fmt.Errorf("%w: %s returned status %d", ErrPortalUnavailable, path, res.StatusCode())
		}
		return res.Body(), nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("%w: %w", ErrPortalUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	body := out.([]byte)
	if bytes.Contains(body, loginFormSentinel) {
		// surfaced to fetchPage which handles the single retry
		return body, fmt.Errorf("%w: session no longer accepted", ErrAuthentication)
	}
	return body, nil
}

// Services fetches and parses the service directory.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	ctx, span := tracer.Start(ctx, "client:Services")
	defer span.End()

	body, err := c.fetchPage(ctx, "/services", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch service directory")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}
	return ParseServices(doc), nil
}

// Catalog fetches and parses the plan-selection page for one service.
func (c *Client) Catalog(ctx context.Context, avcid string) (Catalog, error) {
	ctx, span := tracer.Start(ctx, "client:Catalog")
	defer span.End()

	body, err := c.fetchPage(ctx, "/service", map[string]string{"avcid": avcid})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch plan catalog")
		return Catalog{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return Catalog{}, err
	}
	return ParseCatalog(doc), nil
}

// Balance reads the account balance off the service-directory page.
// The bool is false when no balance could be located; that is not an
// error.
func (c *Client) Balance(ctx context.Context) (float64, bool, error) {
	ctx, span := tracer.Start(ctx, "client:Balance")
	defer span.End()

	body, err := c.fetchPage(ctx, "/services", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch service directory")
		return 0, false, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return 0, false, err
	}
	balance, ok := ParseBalance(doc)
	return balance, ok, nil
}
