package sectoralarm

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// Request describes a single page or endpoint fetch.
type Request struct {
	Method string
	Url    string
	// Body is sent as json when not nil.
	Body any
}

// Endpoints are the urls a format talks to for a given site.
type Endpoints struct {
	// Login serves the login form carrying the anti-forgery token.
	Login string
	// Probe is fetched to find out if the session is still logged in.
	Probe string
	// Validate checks the credentials and answers with a {Success, Message}
	// envelope, it is empty when the format has no such step.
	Validate string
	// Submit is where the login form is posted.
	Submit string
	Status Request
	Log    Request
}

// Format is one generation of the vendor's pages. Everything that differs
// between generations (urls, form fields, markers, page layout, date
// representation) lives behind this interface.
type Format interface {
	Name() string
	DefaultBaseUrl() string
	Endpoints(baseUrl, siteId string) Endpoints
	// LoginMarker is a string only present on pages served to sessions that
	// are not logged in.
	LoginMarker() string
	LoginForm(creds Credentials, token string) map[string]string
	ExtractToken(body []byte) (string, error)
	ExtractStatus(body []byte, n Normalizer) (StatusRecord, error)
	ExtractLog(body []byte, n Normalizer) ([]LogItem, error)
}

// FormatByName returns the format registered under `name`.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(name) {
	case FormatHTML, "":
		return htmlFormat{}, nil
	case FormatJSON:
		return jsonFormat{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (expected %q or %q)", name, FormatHTML, FormatJSON)
}

func extractTokenFromPage(body []byte) (string, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return "", fmt.Errorf("parse login page: %w", err)
	}
	return extractToken(doc)
}

// htmlFormat is the "My Pages" portal, everything is scraped from html.
type htmlFormat struct{}

func (htmlFormat) Name() string {
	return FormatHTML
}

func (htmlFormat) DefaultBaseUrl() string {
	return "https://minasidor.sectoralarm.se"
}

func (htmlFormat) Endpoints(baseUrl, siteId string) Endpoints {
	baseUrl = strings.TrimSuffix(baseUrl, "/")
	return Endpoints{
		Login:    baseUrl + "/Users/Account/LogOn",
		Probe:    baseUrl + "/Users/Account/LogOn",
		Validate: baseUrl + "/MyPages.LogOn/Account/ValidateUser",
		Submit:   baseUrl + "/Users/Account/LogOn?Returnurl=~%2F",
		Status: Request{
			Method: http.MethodGet,
			Url:    baseUrl + "/MyPages/Overview/Panel/" + siteId,
		},
		Log: Request{
			Method: http.MethodGet,
			Url:    baseUrl + "/MyPages/Panel/AlarmSystem/" + siteId + "?locksAvailable=False",
		},
	}
}

func (htmlFormat) LoginMarker() string {
	return "logOnForm"
}

func (htmlFormat) LoginForm(creds Credentials, token string) map[string]string {
	return map[string]string{
		"userNameOrEmail": creds.Email,
		"password":        creds.Password,
		tokenFieldName:    token,
	}
}

func (htmlFormat) ExtractToken(body []byte) (string, error) {
	return extractTokenFromPage(body)
}

func (htmlFormat) ExtractStatus(body []byte, n Normalizer) (StatusRecord, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return StatusRecord{}, fmt.Errorf("parse status page: %w", err)
	}
	fields, problems := extractStatusPanel(doc)
	return normalizeStatus(fields, problems, n), nil
}

func (htmlFormat) ExtractLog(body []byte, n Normalizer) ([]LogItem, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("parse log page: %w", err)
	}
	rows := extractLogRows(doc)
	items := make([]LogItem, len(rows))
	for i, cells := range rows {
		items[i] = normalizeLogRow(cells, n)
	}
	return items, nil
}

// jsonFormat is the "My Pages" api, the login is still an html form but
// status and log are served as json.
type jsonFormat struct{}

func (jsonFormat) Name() string {
	return FormatJSON
}

func (jsonFormat) DefaultBaseUrl() string {
	return "https://mypagesapi.sectoralarm.net"
}

func (jsonFormat) Endpoints(baseUrl, siteId string) Endpoints {
	baseUrl = strings.TrimSuffix(baseUrl, "/")
	return Endpoints{
		Login:  baseUrl + "/User/Login",
		Probe:  baseUrl + "/User/Login",
		Submit: baseUrl + "/User/Login?ReturnUrl=%2f",
		Status: Request{
			Method: http.MethodPost,
			Url:    baseUrl + "/Panel/GetOverview/",
			Body:   map[string]string{"PanelId": siteId},
		},
		Log: Request{
			Method: http.MethodGet,
			Url:    baseUrl + "/Panel/GetPanelHistory/" + siteId,
		},
	}
}

func (jsonFormat) LoginMarker() string {
	return "frmLogin"
}

func (jsonFormat) LoginForm(creds Credentials, token string) map[string]string {
	return map[string]string{
		"userID":       creds.Email,
		"password":     creds.Password,
		tokenFieldName: token,
	}
}

func (jsonFormat) ExtractToken(body []byte) (string, error) {
	return extractTokenFromPage(body)
}

func (jsonFormat) ExtractStatus(body []byte, n Normalizer) (StatusRecord, error) {
	return decodeOverview(body)
}

func (jsonFormat) ExtractLog(body []byte, n Normalizer) ([]LogItem, error) {
	return decodeHistory(body, n)
}
