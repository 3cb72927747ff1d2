package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	cfg := Default()
	cfg.Watches = []WatchConfig{
		{Path: "app.yml", Kind: KindConfig},
		{Path: "items", Kind: KindFolder, Format: "yaml"},
	}
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(Default()))
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"empty root", func(c *AppConfig) { c.Root = "" }, "root is required"},
		{"zero interval", func(c *AppConfig) { c.Reload.Interval = 0 }, "reload.interval"},
		{"bad scheduler", func(c *AppConfig) { c.Reload.Scheduler = "quartz" }, "reload.scheduler"},
		{"negative cooldown", func(c *AppConfig) { c.Trigger.Cooldown = -time.Second }, "trigger.cooldown"},
		{"bad level", func(c *AppConfig) { c.Log.Level = "loud" }, "log.level"},
		{"negative workers", func(c *AppConfig) { c.Events.Workers = -1 }, "events.workers"},
		{"missing path", func(c *AppConfig) { c.Watches[0].Path = " " }, "path is required"},
		{"unknown kind", func(c *AppConfig) { c.Watches[0].Kind = "socket" }, "must be file, folder or config"},
		{"unknown extension", func(c *AppConfig) { c.Watches[0].Path = "app.ini" }, "unknown format"},
		{"folder without format", func(c *AppConfig) { c.Watches[1].Format = "" }, "needs a format"},
		{"duplicate", func(c *AppConfig) { c.Watches[1] = WatchConfig{Path: "./app.yml", Kind: KindFile} }, "duplicate path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			var inv ErrInvalid
			assert.True(t, errors.As(err, &inv))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDisabledReloadAllowsZeroInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Reload.Enabled = false
	cfg.Reload.Interval = 0
	assert.NoError(t, Validate(cfg))
}

func TestWatchConverter(t *testing.T) {
	conv, err := WatchConfig{Path: "a.json", Kind: KindFile}.Converter()
	require.NoError(t, err)
	v, err := conv.Parse([]byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.EqualValues(t, 1, v["a"])

	conv, err = WatchConfig{Path: "a.conf", Kind: KindFile, Format: "toml"}.Converter()
	require.NoError(t, err)
	v, err = conv.Parse([]byte("a = \"b\""))
	require.NoError(t, err)
	assert.Equal(t, "b", v["a"])
}
