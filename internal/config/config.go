// Package config loads dotgrab settings from an INI file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// EnvPath names the variable that points at the config file.
const EnvPath = "DOTGRAB_CONFIG"

type Config struct {
	Path string `ini:"-"`

	OVH      OVH      `ini:"ovh"`
	Purchase Purchase `ini:"purchase"`
	SMTP     SMTP     `ini:"smtp"`
	Twilio   Twilio   `ini:"twilio"`
}

type OVH struct {
	Endpoint          string `ini:"endpoint"`
	ApplicationKey    string `ini:"application_key"`
	ApplicationSecret string `ini:"application_secret"`
	ConsumerKey       string `ini:"consumer_key"`
	Subsidiary        string `ini:"subsidiary"`
}

type Purchase struct {
	// Payment is the preferred payment mean type.
	Payment string `ini:"payment"`
}

type SMTP struct {
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
	SendFrom string `ini:"send_from"`
	SendTo   string `ini:"send_to"`
}

type Twilio struct {
	AccountSID string `ini:"account_sid"`
	AuthToken  string `ini:"auth_token"`
	From       string `ini:"from"`
	To         string `ini:"to"`
}

func Default() *Config {
	return &Config{
		OVH:  OVH{Endpoint: "ovh-eu", Subsidiary: "FR"},
		SMTP: SMTP{Port: 465},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/dotgrab/dotgrab.conf or the platform
// equivalent.
func DefaultPath() string {
	d, err := os.UserConfigDir()
	if err != nil || d == "" {
		return "dotgrab.conf"
	}
	return filepath.Join(d, "dotgrab", "dotgrab.conf")
}

// ResolvePath picks the flag value, then $DOTGRAB_CONFIG, then DefaultPath.
// explicit is false only for the default.
func ResolvePath(flag string) (path string, explicit bool) {
	if p := strings.TrimSpace(flag); p != "" {
		return p, true
	}
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p, true
	}
	return DefaultPath(), false
}

// Load reads path and applies environment overrides. A missing file is an
// error only when the path was given explicitly; otherwise the environment
// alone may configure the run.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	cfg.Path = path

	f, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveSections: true,
		InsensitiveKeys:     true,
		Loose:               !explicit,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := f.MapTo(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.trim()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&c.OVH.Endpoint, "OVH_ENDPOINT")
	set(&c.OVH.ApplicationKey, "OVH_APPLICATION_KEY")
	set(&c.OVH.ApplicationSecret, "OVH_APPLICATION_SECRET")
	set(&c.OVH.ConsumerKey, "OVH_CONSUMER_KEY")
}

func (c *Config) trim() {
	for _, s := range []*string{
		&c.OVH.Endpoint, &c.OVH.ApplicationKey, &c.OVH.ApplicationSecret, &c.OVH.ConsumerKey, &c.OVH.Subsidiary,
		&c.Purchase.Payment,
		&c.SMTP.Host, &c.SMTP.User, &c.SMTP.SendFrom, &c.SMTP.SendTo,
		&c.Twilio.AccountSID, &c.Twilio.AuthToken, &c.Twilio.From, &c.Twilio.To,
	} {
		*s = strings.TrimSpace(*s)
	}
}

// EmailEnabled reports whether the SMTP section is complete enough to send.
func (c *Config) EmailEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.SendFrom != "" && c.SMTP.SendTo != ""
}

func (c *Config) SMSEnabled() bool {
	t := c.Twilio
	return t.AccountSID != "" && t.AuthToken != "" && t.From != "" && t.To != ""
}

// Validate reports every missing setting at once. The consumer key is not
// needed to request a new one, and notifier settings are not needed when
// notifications are off.
func (c *Config) Validate(needConsumerKey, notify bool) error {
	var errs []error
	missing := func(section, key string) {
		errs = append(errs, fmt.Errorf("missing [%s] %s", section, key))
	}
	if c.OVH.Endpoint == "" {
		missing("OVH", "ENDPOINT")
	}
	if c.OVH.ApplicationKey == "" {
		missing("OVH", "APPLICATION_KEY")
	}
	if c.OVH.ApplicationSecret == "" {
		missing("OVH", "APPLICATION_SECRET")
	}
	if needConsumerKey && c.OVH.ConsumerKey == "" {
		missing("OVH", "CONSUMER_KEY")
	}
	if notify && !c.EmailEnabled() && !c.SMSEnabled() {
		errs = append(errs, errors.New("no notifier configured: fill [SMTP] HOST, SEND_FROM, SEND_TO or [TWILIO], or pass --no-notify"))
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid [SMTP] PORT %d", c.SMTP.Port))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config %s: %w", c.Path, errors.Join(errs...))
}

// SaveConsumerKey writes key into the [OVH] section of the file at path,
// creating the file or section when missing. Other content is preserved.
func SaveConsumerKey(path, key string) error {
	f, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	var sec *ini.Section
	for _, s := range f.Sections() {
		if strings.EqualFold(s.Name(), "ovh") {
			sec = s
			break
		}
	}
	if sec == nil {
		if sec, err = f.NewSection("OVH"); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}
	name := "CONSUMER_KEY"
	for _, k := range sec.Keys() {
		if strings.EqualFold(k.Name(), name) {
			name = k.Name()
			break
		}
	}
	sec.Key(name).SetValue(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	_, werr := f.WriteTo(tmp)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("config %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}
