package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"sectoralarm/internal/components/chrono"
	"sectoralarm/internal/components/telemetry"
	"sectoralarm/internal/sectoralarm"
	"sectoralarm/pkg/configutil"
	"strings"

	"dario.cat/mergo"
)

type Config struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	SiteId   string `json:"site_id"`
	// Format is either "html" or "json".
	Format  string `json:"format"`
	BaseUrl string `json:"base_url"`

	CookieFile string `json:"cookie_file"`
	ArchiveDir string `json:"archive_dir"`
	HistoryDb  string `json:"history_db"`

	CloudflareBypass bool `json:"cloudflare_bypass"`
}

var defaultConfig = Config{
	Format:     sectoralarm.FormatHTML,
	CookieFile: "data/cookies.jar",
	ArchiveDir: "data",
	HistoryDb:  "data/history.db",
}

func (c Config) validate() error {
	var missing []error
	if c.Email == "" {
		missing = append(missing, errors.New("email is required"))
	}
	if c.Password == "" {
		missing = append(missing, errors.New("password is required"))
	}
	if c.SiteId == "" {
		missing = append(missing, errors.New("site_id is required"))
	}
	return errors.Join(missing...)
}

// readConfig reads the config at `path` with defaults filled in.
func readConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	err = mergo.Merge(&cfg, defaultConfig)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadConfig is readConfig for commands that talk to the portal.
func loadConfig(path string) (Config, error) {
	cfg, err := readConfig(path)
	if err != nil {
		return Config{}, err
	}
	err = cfg.validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// contains reports whether `path` is `dir` or lies somewhere below it.
func contains(dir, path string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

// checkDumpDir refuses http dump directories that would take the cookie
// jar, the archive or the history with them, the dump directory is emptied
// on every run.
func checkDumpDir(dir string, cfg Config) error {
	kept := map[string]string{
		"archive_dir": cfg.ArchiveDir,
		"cookie_file": cfg.CookieFile,
		"history_db":  cfg.HistoryDb,
	}
	for _, key := range []string{"archive_dir", "cookie_file", "history_db"} {
		path := kept[key]
		if path == "" || path == ":memory:" {
			continue
		}
		inside, err := contains(dir, path)
		if err != nil {
			return fmt.Errorf("check http dump dir: %w", err)
		}
		if inside {
			return fmt.Errorf("http dump dir %q would delete %s %q", dir, key, path)
		}
	}
	return nil
}

func newClient(cfg Config, tel telemetry.API) (*sectoralarm.Client, error) {
	format, err := sectoralarm.FormatByName(cfg.Format)
	if err != nil {
		return nil, err
	}

	var output telemetry.MessageOutput
	if dumpHttpDir != "" {
		err = checkDumpDir(dumpHttpDir, cfg)
		if err != nil {
			return nil, err
		}
		fsOutput, err := telemetry.NewFilesystemOutput(dumpHttpDir)
		if err != nil {
			return nil, fmt.Errorf("create http dump dir: %w", err)
		}
		output = fsOutput
	}

	return sectoralarm.NewClient(sectoralarm.ClientOptions{
		Credentials: sectoralarm.Credentials{
			Email:    cfg.Email,
			Password: cfg.Password,
			SiteId:   cfg.SiteId,
		},
		Format:           format,
		BaseUrl:          cfg.BaseUrl,
		Cookies:          sectoralarm.NewCookieStore(cfg.CookieFile, tel),
		Time:             chrono.NewStandardTime(),
		Tel:              tel,
		CloudflareBypass: cfg.CloudflareBypass,
		HttpOutput:       output,
	})
}
