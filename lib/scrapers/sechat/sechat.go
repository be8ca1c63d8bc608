package sechat

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"spotdetector/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/sechat")

// Client is an authenticated session against a Stack Exchange chat host.
// Chat shares the parent site's account but carries its own fkey, scraped
// off the room page before the first message.
type Client struct {
	Http   *resty.Client
	RoomId int64

	fkey string
}

type ClientOptions struct {
	// e.g. "https://chat.stackoverflow.com"
	Host   string
	RoomId int64
}

func NewClient(opts ClientOptions) (*Client, error) {
	client := resty.New()
	client.SetBaseURL(opts.Host)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRetryCount(3)
	client.SetRetryWaitTime(5 * time.Second)

	telemetry.InstrumentResty(client, "scrapers/sechat/http")

	return &Client{
		Http:   client,
		RoomId: opts.RoomId,
	}, nil
}

// Login authenticates against the parent site (the chat host trusts its
// cookies) and then scrapes the chat fkey off the room page.
func (c *Client) Login(ctx context.Context, loginHost, email, password string) error {
	ctx, span := tracer.Start(ctx, "chat:Login")
	defer span.End()

	doc, err := c.scrape(ctx, fmt.Sprintf("%s/users/login", loginHost))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	loginFkey := doc.Find(`input[name="fkey"]`).AttrOr("value", "")
	if loginFkey == "" {
		span.SetStatus(codes.Error, "failed to find login fkey")
		return fmt.Errorf("could not find fkey on the login page")
	}

	_, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"fkey":     loginFkey,
			"email":    email,
			"password": password,
		}).
		Post(fmt.Sprintf("%s/users/login", loginHost))
	if err != nil {
		span.SetStatus(codes.Error, "failed to post login form")
		return err
	}

	return c.JoinRoom(ctx, c.RoomId)
}

// JoinRoom fetches the room page, which both validates access and yields
// the chat fkey every message post requires.
func (c *Client) JoinRoom(ctx context.Context, roomId int64) error {
	ctx, span := tracer.Start(ctx, "chat:JoinRoom")
	defer span.End()

	doc, err := c.scrape(ctx, fmt.Sprintf("/rooms/%d", roomId))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch room")
		return err
	}
	fkey := doc.Find(`input[name="fkey"]`).AttrOr("value", "")
	if fkey == "" {
		span.SetStatus(codes.Error, "failed to find chat fkey")
		return fmt.Errorf("could not find fkey in room %d", roomId)
	}
	c.fkey = fkey
	c.RoomId = roomId
	return nil
}

func (c *Client) SendMessage(ctx context.Context, text string) error {
	ctx, span := tracer.Start(ctx, "chat:SendMessage")
	defer span.End()

	if c.fkey == "" {
		return fmt.Errorf("not joined to a room")
	}

	values := url.Values{
		"fkey": {c.fkey},
		"text": {text},
	}
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(values.Encode()).
		Post(fmt.Sprintf("/chats/%d/messages/new", c.RoomId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post message")
		return err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
		return fmt.Errorf("send message: status %s", res.Status())
	}
	return nil
}

func (c *Client) scrape(ctx context.Context, link string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}
