package sectoralarm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sectoralarm/internal/components/chrono"
	"sectoralarm/internal/components/telemetry"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "anna@example.com"
	testPassword = "hunter2"
	testSiteId   = "42"
)

// fakePortal imitates the html portal: anonymous sessions get the login
// form, logging in sets a session cookie.
type fakePortal struct {
	server *httptest.Server

	validations atomic.Int32
	submits     atomic.Int32

	loginPage     []byte
	rejectMessage *string
	statusCode    int
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		loginPage:  loginPage,
		statusCode: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/Users/Account/LogOn", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if p.loggedIn(r) {
				w.Write([]byte(`<html><body><a href="/MyPages">Mina sidor</a></body></html>`))
				return
			}
			w.Write(p.loginPage)
		case http.MethodPost:
			p.submits.Add(1)
			if r.FormValue("__RequestVerificationToken") == "abc123" &&
				r.FormValue("userNameOrEmail") == testEmail &&
				r.FormValue("password") == testPassword {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "valid", Path: "/"})
			}
			http.Redirect(w, r, "/", http.StatusFound)
		}
	})
	mux.HandleFunc("/MyPages.LogOn/Account/ValidateUser", func(w http.ResponseWriter, r *http.Request) {
		p.validations.Add(1)
		envelope := loginEnvelope{Success: true}
		if p.rejectMessage != nil {
			envelope = loginEnvelope{Success: false, Message: *p.rejectMessage}
		}
		json.NewEncoder(w).Encode(envelope)
	})
	mux.HandleFunc("/MyPages/Overview/Panel/"+testSiteId, func(w http.ResponseWriter, r *http.Request) {
		if !p.loggedIn(r) {
			http.Redirect(w, r, "/Users/Account/LogOn", http.StatusFound)
			return
		}
		w.WriteHeader(p.statusCode)
		w.Write(statusPage)
	})
	mux.HandleFunc("/MyPages/Panel/AlarmSystem/"+testSiteId, func(w http.ResponseWriter, r *http.Request) {
		if !p.loggedIn(r) {
			http.Redirect(w, r, "/Users/Account/LogOn", http.StatusFound)
			return
		}
		require.Equal(t, "False", r.URL.Query().Get("locksAvailable"))
		w.Write(logPage)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Start</body></html>`))
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie("session")
	return err == nil && cookie.Value == "valid"
}

type testClient struct {
	*Client
	tel        *telemetry.RecorderAPI
	cookiePath string
}

func newTestClient(t *testing.T, format Format, baseUrl, cookiePath string) testClient {
	tel := telemetry.NewRecorderAPI()
	client, err := NewClient(ClientOptions{
		Credentials: Credentials{
			Email:    testEmail,
			Password: testPassword,
			SiteId:   testSiteId,
		},
		Format:  format,
		BaseUrl: baseUrl,
		Cookies: NewCookieStore(cookiePath, tel),
		Time:    chrono.FixedTime{Time: fixedNow},
		Tel:     tel,
	})
	require.NoError(t, err)
	return testClient{Client: client, tel: tel, cookiePath: cookiePath}
}

func TestClientMissingCookieFileLogsIn(t *testing.T) {
	portal := newFakePortal(t)
	cookiePath := filepath.Join(t.TempDir(), "data", "cookies.jar")
	client := newTestClient(t, htmlFormat{}, portal.server.URL, cookiePath)

	record, err := client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Disarmed", record.Event)
	require.Equal(t, "Anna Andersson", record.User)
	require.Equal(t, "2026-03-15 10:42:00", record.Timestamp.String())

	require.EqualValues(t, 1, portal.validations.Load())
	require.EqualValues(t, 1, portal.submits.Load())

	content, err := os.ReadFile(cookiePath)
	require.NoError(t, err)
	require.JSONEq(t, `{"session": "valid"}`, string(content))
	require.Empty(t, client.tel.Reports(telemetry.KindBroken))
}

func TestClientReusesPersistedSession(t *testing.T) {
	portal := newFakePortal(t)
	cookiePath := filepath.Join(t.TempDir(), "cookies.jar")

	first := newTestClient(t, htmlFormat{}, portal.server.URL, cookiePath)
	_, err := first.Status(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, portal.submits.Load())

	// a separate client only shares the cookie file
	second := newTestClient(t, htmlFormat{}, portal.server.URL, cookiePath)
	items, err := second.EventLog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.IsType(t, LogEntry{}, items[0])
	require.IsType(t, LogEntry{}, items[1])
	require.IsType(t, MalformedLogEntry{}, items[2])

	require.EqualValues(t, 1, portal.submits.Load())
	require.EqualValues(t, 1, portal.validations.Load())

	warnings := second.tel.Reports(telemetry.KindWarning)
	require.Len(t, warnings, 1)
	counts := second.tel.Reports(telemetry.KindCount)
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(3)}, counts[0].Params)
}

func TestClientStaleSessionLogsInAgain(t *testing.T) {
	portal := newFakePortal(t)
	cookiePath := filepath.Join(t.TempDir(), "cookies.jar")
	require.NoError(t, os.WriteFile(cookiePath, []byte(`{"session": "expired"}`), 0600))

	client := newTestClient(t, htmlFormat{}, portal.server.URL, cookiePath)
	_, err := client.Status(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, portal.submits.Load())

	content, err := os.ReadFile(cookiePath)
	require.NoError(t, err)
	require.JSONEq(t, `{"session": "valid"}`, string(content))
}

func TestClientCorruptCookieFile(t *testing.T) {
	portal := newFakePortal(t)
	cookiePath := filepath.Join(t.TempDir(), "cookies.jar")
	require.NoError(t, os.WriteFile(cookiePath, []byte(`{"session": `), 0600))

	client := newTestClient(t, htmlFormat{}, portal.server.URL, cookiePath)
	record, err := client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Disarmed", record.Event)
	require.EqualValues(t, 1, portal.submits.Load())

	warnings := client.tel.Reports(telemetry.KindWarning)
	require.Len(t, warnings, 1)
	require.True(t, strings.HasSuffix(warnings[0].Id, report_cookies_load))
}

func TestClientLoginRejected(t *testing.T) {
	testCases := []struct {
		message  string
		expected string
	}{
		{message: "Felaktigt lösenord", expected: "Felaktigt lösenord"},
		{message: "", expected: "No message"},
	}

	for _, test := range testCases {
		portal := newFakePortal(t)
		portal.rejectMessage = &test.message
		cookiePath := filepath.Join(t.TempDir(), "cookies.jar")

		client := newTestClient(t, htmlFormat{}, portal.server.URL, cookiePath)
		_, err := client.Status(context.Background())
		require.ErrorIs(t, err, ErrLoginRejected)
		require.Contains(t, err.Error(), test.expected)

		require.EqualValues(t, 0, portal.submits.Load())
		_, err = os.Stat(cookiePath)
		require.True(t, os.IsNotExist(err))
		require.NotEmpty(t, client.tel.Reports(telemetry.KindBroken))
	}
}

func TestClientMissingToken(t *testing.T) {
	portal := newFakePortal(t)
	portal.loginPage = []byte(`<html><body><form id="logOnForm"></form></body></html>`)

	client := newTestClient(t, htmlFormat{}, portal.server.URL, filepath.Join(t.TempDir(), "cookies.jar"))
	_, err := client.EventLog(context.Background())
	require.ErrorIs(t, err, ErrTokenNotFound)
	require.EqualValues(t, 0, portal.validations.Load())
	require.EqualValues(t, 0, portal.submits.Load())
}

func TestClientUnexpectedStatus(t *testing.T) {
	portal := newFakePortal(t)
	portal.statusCode = http.StatusInternalServerError

	client := newTestClient(t, htmlFormat{}, portal.server.URL, filepath.Join(t.TempDir(), "cookies.jar"))
	_, err := client.Status(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestClientCanceledContext(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, htmlFormat{}, portal.server.URL, filepath.Join(t.TempDir(), "cookies.jar"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Status(ctx)
	require.Error(t, err)
	require.EqualValues(t, 0, portal.submits.Load())
}

func newFakeApi(t *testing.T, submits *atomic.Int32) *httptest.Server {
	loggedIn := func(r *http.Request) bool {
		cookie, err := r.Cookie("auth")
		return err == nil && cookie.Value == "ok"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/User/Login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			submits.Add(1)
			require.Equal(t, "%2f", strings.ToLower(strings.TrimPrefix(r.URL.RawQuery, "ReturnUrl=")))
			if r.FormValue("userID") == testEmail && r.FormValue("password") == testPassword {
				http.SetCookie(w, &http.Cookie{Name: "auth", Value: "ok", Path: "/"})
			}
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if loggedIn(r) {
			w.Write([]byte(`<html><body>Hej</body></html>`))
			return
		}
		w.Write([]byte(`<html><body><form id="frmLogin">` +
			`<input name="__RequestVerificationToken" value="abc123" />` +
			`</form></body></html>`))
	})
	mux.HandleFunc("/Panel/GetOverview/", func(w http.ResponseWriter, r *http.Request) {
		require.True(t, loggedIn(r))
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			PanelId string
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, testSiteId, body.PanelId)
		w.Header().Set("content-type", "application/json")
		w.Write(overviewBody)
	})
	mux.HandleFunc("/Panel/GetPanelHistory/"+testSiteId, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, loggedIn(r))
		w.Header().Set("content-type", "application/json")
		w.Write(historyBody)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientJSONFormat(t *testing.T) {
	var submits atomic.Int32
	server := newFakeApi(t, &submits)
	cookiePath := filepath.Join(t.TempDir(), "cookies.jar")

	client := newTestClient(t, jsonFormat{}, server.URL, cookiePath)
	record, err := client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, ArmedStatePartialArmed, record.ArmedState)

	items, err := client.EventLog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	entry, ok := items[0].(LogEntry)
	require.True(t, ok)
	require.Equal(t, "Anna Andersson", entry.User)
	require.Equal(t, "2026-03-15 11:00:00", entry.Timestamp.String())

	require.EqualValues(t, 1, submits.Load())
}

func TestNewClientBaseUrl(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	opts := ClientOptions{
		Credentials: Credentials{Email: testEmail, Password: testPassword, SiteId: testSiteId},
		Format:      htmlFormat{},
		Cookies:     NewCookieStore(filepath.Join(t.TempDir(), "cookies.jar"), tel),
		Time:        chrono.FixedTime{Time: fixedNow},
		Tel:         tel,
	}

	client, err := NewClient(opts)
	require.NoError(t, err)
	require.Equal(t, "https://minasidor.sectoralarm.se/Users/Account/LogOn", client.endpoints.Login)

	opts.BaseUrl = "not a url"
	_, err = NewClient(opts)
	require.Error(t, err)

	opts.BaseUrl = "http://example.com"
	opts.Credentials.SiteId = ""
	require.Panics(t, func() { NewClient(opts) })
}
