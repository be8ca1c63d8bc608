package stackexchange

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"spotdetector/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var InvalidCredentials = fmt.Errorf("could not log in with the given email and password")

// Browser is an authenticated scraping session against one Stack Exchange
// site. It owns the cookie jar and the per-page fkey the site expects on
// every form post; parsing what comes back is the caller's business.
type Browser struct {
	BaseUrl *url.URL
	Http    *resty.Client

	mu   sync.Mutex
	fkey string
}

type BrowserOptions struct {
	// e.g. "https://stackoverflow.com"
	Host string
}

func NewBrowser(opts BrowserOptions) (*Browser, error) {
	baseUrl, err := url.Parse(opts.Host)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.Host)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	// transient fetch failures are this layer's problem, never the
	// parsers'; they only ever see a document or a final error
	client.SetRetryCount(5)
	client.SetRetryWaitTime(30 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Minute)

	telemetry.InstrumentResty(client, "scrapers/stackexchange/http")

	return &Browser{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

// Login authenticates the session. The login form requires the fkey
// hidden input scraped off the form page itself.
func (b *Browser) Login(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "browser:Login")
	defer span.End()

	if email == "" || password == "" {
		span.SetStatus(codes.Error, "missing credentials")
		return InvalidCredentials
	}

	doc, err := b.ScrapeDocument(ctx, "/users/login")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	fkey := doc.Find(`input[name="fkey"]`).AttrOr("value", "")
	if fkey == "" {
		span.SetStatus(codes.Error, "failed to find fkey input")
		return fmt.Errorf("could not find fkey on the login page")
	}
	b.setFkey(fkey)

	err = b.PostForm(ctx, "/users/login", url.Values{
		"email":    {email},
		"password": {password},
	})
	if err != nil {
		span.SetStatus(codes.Error, "failed to post login form")
		return err
	}
	return nil
}

var userIdPathRegex = regexp.MustCompile(`/users/(\d+)`)

// LoggedInUserId resolves the current account by following the
// /users/current redirect to the profile url.
func (b *Browser) LoggedInUserId(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "browser:LoggedInUserId")
	defer span.End()

	res, err := b.Http.R().
		SetContext(ctx).
		Get("/users/current")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch current user")
		return 0, err
	}

	match := userIdPathRegex.FindStringSubmatch(res.RawResponse.Request.URL.Path)
	if match == nil {
		span.SetStatus(codes.Error, "redirect did not land on a profile")
		return 0, fmt.Errorf("not logged in: redirected to %q", res.RawResponse.Request.URL.Path)
	}
	return strconv.ParseInt(match[1], 10, 64)
}

// ScrapeDocument fetches a path and parses it. Any fkey on the page
// refreshes the session's cached one as a side effect.
func (b *Browser) ScrapeDocument(ctx context.Context, path string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "browser:ScrapeDocument")
	defer span.End()

	res, err := b.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch document")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	if fkey := doc.Find(`input[name="fkey"]`).AttrOr("value", ""); fkey != "" {
		b.setFkey(fkey)
	}
	return doc, nil
}

// PostForm posts a form with the session fkey injected.
func (b *Browser) PostForm(ctx context.Context, path string, values url.Values) error {
	values.Set("fkey", b.Fkey())

	res, err := b.Http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(values.Encode()).
		Post(path)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("post %s: status %s", path, res.Status())
	}
	return nil
}

// ReviewHistoryPages returns the page-fetch capability a history scan
// needs for one review queue.
func (b *Browser) ReviewHistoryPages(reviewType ReviewType) PageProvider {
	return func(ctx context.Context, page int) (*goquery.Document, error) {
		return b.ScrapeDocument(ctx, fmt.Sprintf("/review/%s/history?page=%d", reviewType, page))
	}
}

// Resolve turns a site-relative link into an absolute url.
func (b *Browser) Resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return b.BaseUrl.ResolveReference(ref).String()
}

func (b *Browser) Fkey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fkey
}

func (b *Browser) setFkey(fkey string) {
	b.mu.Lock()
	b.fkey = fkey
	b.mu.Unlock()
}
