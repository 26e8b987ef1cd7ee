package sectoralarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"sectoralarm/internal/components/assert"
	"sectoralarm/internal/components/chrono"
	"sectoralarm/internal/components/telemetry"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const (
	report_client_load_cookies = "client.load-cookies"
	report_client_save_cookies = "client.save-cookies"
	report_client_probe        = "client.probe"
	report_client_login        = "client.login"
	report_client_status       = "client.status"
	report_client_event_log    = "client.event-log"
	report_client_log_entries  = "client.log-entries"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

const defaultTimeout = 30 * time.Second

// Credentials identify the account and the alarm site to read.
type Credentials struct {
	Email    string
	Password string
	SiteId   string
}

type ClientOptions struct {
	Credentials Credentials
	Format      Format
	// BaseUrl overrides Format.DefaultBaseUrl when not empty.
	BaseUrl string
	Cookies CookieStore
	Time    chrono.TimeAPI
	Tel     telemetry.API

	// CloudflareBypass wraps the transport so requests look like a real browser.
	CloudflareBypass bool
	// HttpOutput receives a dump of every http exchange when not nil.
	HttpOutput telemetry.MessageOutput
	// Timeout defaults to 30 seconds.
	Timeout time.Duration
}

// Client reads the status and the event log of one alarm site. It logs in
// lazily, reusing the persisted session cookies while the portal accepts
// them.
//
// A Client is not safe for concurrent use.
type Client struct {
	creds      Credentials
	format     Format
	baseUrl    *url.URL
	endpoints  Endpoints
	cookies    CookieStore
	normalizer Normalizer
	tel        telemetry.API

	cloudflareBypass bool
	output           telemetry.MessageOutput
	timeout          time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	assert.NotNil(opts.Format)
	assert.NotNil(opts.Time)
	assert.NotNil(opts.Tel)
	assert.NotEmptyStr(opts.Credentials.Email)
	assert.NotEmptyStr(opts.Credentials.Password)
	assert.NotEmptyStr(opts.Credentials.SiteId)
	assert.NotEmptyStr(opts.Cookies.Path())

	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = opts.Format.DefaultBaseUrl()
	}
	parsedBaseUrl, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsedBaseUrl.Scheme == "" || parsedBaseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", baseUrl)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		creds:      opts.Credentials,
		format:     opts.Format,
		baseUrl:    parsedBaseUrl,
		endpoints:  opts.Format.Endpoints(baseUrl, opts.Credentials.SiteId),
		cookies:    opts.Cookies,
		normalizer: Normalizer{Time: opts.Time},
		tel:        telemetry.NewScopedAPI("sectoralarm_client", opts.Tel),

		cloudflareBypass: opts.CloudflareBypass,
		output:           opts.HttpOutput,
		timeout:          timeout,
	}, nil
}

// session is one browser-like conversation with the portal, a new login
// always gets a new session instead of reusing the old cookies.
type session struct {
	http *resty.Client
	jar  *cookiejar.Jar
}

func (c *Client) newSession() (session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return session{}, err
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	if c.cloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(c.baseUrl.Hostname()))
	httpClient.SetTimeout(c.timeout)

	telemetry.InstrumentResty(httpClient, c.tel, c.output)

	return session{http: httpClient, jar: jar}, nil
}

func checkStatus(res *resty.Response) error {
	if res.IsError() {
		return fmt.Errorf("%w: %s %s: %s", ErrUnexpectedStatus, res.Request.Method, res.Request.URL, res.Status())
	}
	return nil
}

// probe reports whether the session is logged in. The portal serves the
// login page to anonymous sessions only, so the absence of the login form
// marker is taken as being logged in. This breaks if the portal renames
// its login form.
func (c *Client) probe(ctx context.Context, s session) (bool, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(c.endpoints.Probe)
	if err != nil {
		return false, fmt.Errorf("probe: %w", err)
	}
	err = checkStatus(res)
	if err != nil {
		c.tel.ReportBroken(report_client_probe, err)
		return false, fmt.Errorf("probe: %w", err)
	}
	return !strings.Contains(res.String(), c.format.LoginMarker()), nil
}

func (c *Client) login(ctx context.Context) (session, error) {
	loginError := func(err error) error {
		c.tel.ReportBroken(report_client_login, err)
		return fmt.Errorf("login: %w", err)
	}

	s, err := c.newSession()
	if err != nil {
		return session{}, loginError(fmt.Errorf("new session: %w", err))
	}

	res, err := s.http.R().
		SetContext(ctx).
		Get(c.endpoints.Login)
	if err != nil {
		return session{}, loginError(fmt.Errorf("login page request: %w", err))
	}
	err = checkStatus(res)
	if err != nil {
		return session{}, loginError(err)
	}
	token, err := c.format.ExtractToken(res.Body())
	if err != nil {
		return session{}, loginError(err)
	}

	form := c.format.LoginForm(c.creds, token)

	if c.endpoints.Validate != "" {
		res, err = s.http.R().
			SetContext(ctx).
			SetFormData(form).
			Post(c.endpoints.Validate)
		if err != nil {
			return session{}, loginError(fmt.Errorf("validate request: %w", err))
		}
		err = checkStatus(res)
		if err != nil {
			return session{}, loginError(err)
		}

		var envelope loginEnvelope
		err = json.Unmarshal(res.Body(), &envelope)
		if err != nil {
			return session{}, loginError(fmt.Errorf("decode validate response: %w", err))
		}
		if !envelope.Success {
			message := envelope.Message
			if message == "" {
				message = "No message"
			}
			return session{}, loginError(fmt.Errorf("%w: %s", ErrLoginRejected, message))
		}
	}

	// the portal answers the form post with a redirect either way, whether
	// the login took is only known on the next probe
	_, err = s.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(c.endpoints.Submit)
	if err != nil {
		return session{}, loginError(fmt.Errorf("submit request: %w", err))
	}

	err = c.cookies.Save(s.jar, c.baseUrl)
	if err != nil {
		c.tel.ReportBroken(report_client_save_cookies, err)
	}

	c.tel.ReportDebug("logged in", c.format.Name())
	return s, nil
}

// ensureAuthenticated returns a session that is logged in, restored from
// the cookie file when possible.
func (c *Client) ensureAuthenticated(ctx context.Context) (session, error) {
	s, err := c.newSession()
	if err != nil {
		return session{}, fmt.Errorf("new session: %w", err)
	}

	restored, err := c.cookies.Load(s.jar, c.baseUrl)
	if err != nil {
		c.tel.ReportWarning(report_client_load_cookies, err)
	}

	if restored > 0 {
		authenticated, err := c.probe(ctx, s)
		if err != nil {
			return session{}, err
		}
		if authenticated {
			c.tel.ReportDebug("already logged in")
			return s, nil
		}
	}

	c.tel.ReportDebug("logging in")
	return c.login(ctx)
}

func (c *Client) fetch(ctx context.Context, s session, req Request) ([]byte, error) {
	r := s.http.R().SetContext(ctx)
	if req.Body != nil {
		r.SetHeader("content-type", "application/json")
		r.SetBody(req.Body)
	}
	res, err := r.Execute(req.Method, req.Url)
	if err != nil {
		return nil, err
	}
	err = checkStatus(res)
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// Status returns the current status of the alarm.
func (c *Client) Status(ctx context.Context) (StatusRecord, error) {
	s, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return StatusRecord{}, err
	}

	body, err := c.fetch(ctx, s, c.endpoints.Status)
	if err != nil {
		c.tel.ReportBroken(report_client_status, err)
		return StatusRecord{}, fmt.Errorf("fetch status: %w", err)
	}
	record, err := c.format.ExtractStatus(body, c.normalizer)
	if err != nil {
		c.tel.ReportBroken(report_client_status, err)
		return StatusRecord{}, fmt.Errorf("extract status: %w", err)
	}

	for _, problem := range record.Errors {
		c.tel.ReportWarning(report_client_status, problem)
	}
	return record, nil
}

// EventLog returns the event log of the alarm, most recent event first.
// Rows that could not be normalized are kept as MalformedLogEntry.
func (c *Client) EventLog(ctx context.Context) ([]LogItem, error) {
	s, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, s, c.endpoints.Log)
	if err != nil {
		c.tel.ReportBroken(report_client_event_log, err)
		return nil, fmt.Errorf("fetch event log: %w", err)
	}
	items, err := c.format.ExtractLog(body, c.normalizer)
	if err != nil {
		c.tel.ReportBroken(report_client_event_log, err)
		return nil, fmt.Errorf("extract event log: %w", err)
	}

	for _, item := range items {
		malformed, ok := item.(MalformedLogEntry)
		if ok {
			c.tel.ReportWarning(report_client_event_log, errors.New(malformed.ErrorMessage), malformed.RawEvent)
		}
	}
	c.tel.ReportCount(report_client_log_entries, int64(len(items)))
	return items, nil
}
