package sectoralarm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sectoralarm/internal/components/assert"
	"sectoralarm/internal/components/telemetry"
	"sort"
)

const report_cookies_load = "cookies.load"

// CookieStore persists the session cookies of a single portal between runs
// as a json object of cookie name to value.
//
// Two processes sharing a file may overwrite each other's session, the last
// login wins.
type CookieStore struct {
	path string
	tel  telemetry.API
}

func NewCookieStore(path string, tel telemetry.API) CookieStore {
	assert.NotEmptyStr(path)
	assert.NotNil(tel)
	return CookieStore{
		path: path,
		tel:  telemetry.NewScopedAPI("cookie_store", tel),
	}
}

func (s CookieStore) Path() string {
	return s.path
}

func rootUrl(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

// Load restores the persisted cookies into `jar` for the site at `u` and
// returns how many were restored. A missing file restores nothing, a file
// that cannot be decoded is reported and also restores nothing.
func (s CookieStore) Load(jar http.CookieJar, u *url.URL) (int, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.tel.ReportDebug("no cookie file", s.path)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cookie file: %w", err)
	}

	var values map[string]string
	err = json.Unmarshal(content, &values)
	if err != nil {
		s.tel.ReportWarning(
			report_cookies_load,
			fmt.Errorf("decode cookie file %s: %w", s.path, err),
		)
		return 0, nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{
			Name:  name,
			Value: values[name],
			Path:  "/",
		})
	}
	jar.SetCookies(rootUrl(u), cookies)

	s.tel.ReportDebug("loaded cookies", len(cookies), s.path)
	return len(cookies), nil
}

// Save overwrites the cookie file with the cookies `jar` holds for the site
// at `u`. The file is replaced atomically so a crash never leaves a
// truncated jar behind.
func (s CookieStore) Save(jar http.CookieJar, u *url.URL) error {
	values := map[string]string{}
	for _, cookie := range jar.Cookies(rootUrl(u)) {
		values[cookie.Name] = cookie.Value
	}
	content, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	dir := filepath.Dir(s.path)
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cookie file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(content)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cookie file: %w", err)
	}
	err = tmp.Chmod(0600)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp cookie file: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp cookie file: %w", err)
	}

	err = os.Rename(tmp.Name(), s.path)
	if err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}

	s.tel.ReportDebug("saved cookies", len(values), s.path)
	return nil
}
