package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[OVH]
ENDPOINT = ovh-ca
APPLICATION_KEY = ak
APPLICATION_SECRET = as
CONSUMER_KEY = ck

[PURCHASE]
PAYMENT = paypal

[smtp]
host = smtp.example.org
send_from = bot@example.org
send_to = me@example.org, you@example.org
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "dotgrab.conf")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	p := writeConfig(t, sample)
	t.Setenv("OVH_CONSUMER_KEY", "from-env")

	cfg, err := Load(p, true)
	require.NoError(t, err)
	assert.Equal(t, "ovh-ca", cfg.OVH.Endpoint)
	assert.Equal(t, "ak", cfg.OVH.ApplicationKey)
	assert.Equal(t, "from-env", cfg.OVH.ConsumerKey)
	assert.Equal(t, "FR", cfg.OVH.Subsidiary)
	assert.Equal(t, "paypal", cfg.Purchase.Payment)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.True(t, cfg.EmailEnabled())
	assert.False(t, cfg.SMSEnabled())
	assert.NoError(t, cfg.Validate(true, true))
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.conf")

	_, err := Load(missing, true)
	require.Error(t, err)

	t.Setenv("OVH_APPLICATION_KEY", "ak")
	t.Setenv("OVH_APPLICATION_SECRET", "as")
	t.Setenv("OVH_CONSUMER_KEY", "ck")
	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "ovh-eu", cfg.OVH.Endpoint)
	assert.NoError(t, cfg.Validate(true, false))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.Validate(true, true)
	require.Error(t, err)
	for _, want := range []string{"APPLICATION_KEY", "APPLICATION_SECRET", "CONSUMER_KEY", "no notifier"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg.OVH.ApplicationKey = "ak"
	cfg.OVH.ApplicationSecret = "as"
	assert.NoError(t, cfg.Validate(false, false), "key command needs no consumer key")

	cfg.Twilio = Twilio{AccountSID: "AC", AuthToken: "t", From: "+1", To: "+2"}
	cfg.OVH.ConsumerKey = "ck"
	assert.NoError(t, cfg.Validate(true, true))

	cfg.SMTP.Port = 0
	assert.Error(t, cfg.Validate(true, true))
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	p, explicit := ResolvePath("")
	assert.False(t, explicit)
	assert.Equal(t, "dotgrab.conf", filepath.Base(p))

	t.Setenv(EnvPath, "/etc/dotgrab.conf")
	p, explicit = ResolvePath("")
	assert.True(t, explicit)
	assert.Equal(t, "/etc/dotgrab.conf", p)

	p, _ = ResolvePath(" ./local.conf ")
	assert.Equal(t, "./local.conf", p)
}

func TestSaveConsumerKey(t *testing.T) {
	p := writeConfig(t, "[ovh]\nendpoint = ovh-eu\nconsumer_key = old\n\n[PURCHASE]\nPAYMENT = paypal\n")
	require.NoError(t, SaveConsumerKey(p, "new-key"))

	t.Setenv("OVH_CONSUMER_KEY", "")
	cfg, err := Load(p, true)
	require.NoError(t, err)
	assert.Equal(t, "new-key", cfg.OVH.ConsumerKey)
	assert.Equal(t, "paypal", cfg.Purchase.Payment)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "old")
	assert.NotContains(t, string(b), "CONSUMER_KEY", "existing key spelling is kept")
}

func TestSaveConsumerKey_NewFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "sub", "dotgrab.conf")
	require.NoError(t, SaveConsumerKey(p, "ck"))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[OVH]")
	assert.Contains(t, string(b), "CONSUMER_KEY")
}
