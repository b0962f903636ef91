package main

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/grauwen/utlx-conformance-harness/data"
)

// fileConfig is the TOML config file. Each key has the same meaning as the flag of the same
// name, with dashes replaced by underscores.
type fileConfig struct {
	Transport            string   `toml:"transport"`
	Tests                string   `toml:"tests"`
	PeerCommand          []string `toml:"peer_command"`
	PeerEnv              []string `toml:"peer_env"`
	URL                  string   `toml:"url"`
	StartDaemon          bool     `toml:"start_daemon"`
	Categories           []string `toml:"category"`
	Tags                 []string `toml:"tag"`
	Timeout              string   `toml:"timeout"`
	NotificationTimeout  string   `toml:"notification_timeout"`
	HTTPTimeout          string   `toml:"http_timeout"`
	SettleDelay          string   `toml:"settle_delay"`
	GracePeriod          string   `toml:"grace_period"`
	StartupDelay         string   `toml:"startup_delay"`
	DaemonStartupTimeout string   `toml:"daemon_startup_timeout"`
	StderrFilters        []string `toml:"stderr_filter"`
	CaptureTests         bool     `toml:"capture_tests"`
	JUnit                string   `toml:"junit"`
}

// applyConfigFile copies every value that the file defines into c, except for the ones whose
// flag was given on the command line.
func (c *commandParams) applyConfigFile(path string, flagGiven func(string) bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
	}
	use := func(key string) bool {
		return meta.IsDefined(key) && !flagGiven(strings.ReplaceAll(key, "_", "-"))
	}

	if use("transport") {
		t, err := data.ParseTransport(strings.TrimSpace(raw.Transport))
		if err != nil {
			return fmt.Errorf("parse transport: %w", err)
		}
		c.transport = t
	}
	if use("tests") {
		c.testsPath = strings.TrimSpace(raw.Tests)
	}
	if use("peer_command") {
		c.peerCommand = raw.PeerCommand
	}
	if use("peer_env") {
		c.peerEnv = raw.PeerEnv
	}
	if use("url") {
		c.serviceURL = strings.TrimSpace(raw.URL)
	}
	if use("start_daemon") {
		c.startDaemon = raw.StartDaemon
	}
	if use("category") {
		c.categories = raw.Categories
	}
	if use("tag") {
		c.tags = raw.Tags
	}
	if use("capture_tests") {
		c.captureTests = raw.CaptureTests
	}
	if use("junit") {
		c.jUnitFile = strings.TrimSpace(raw.JUnit)
	}
	if use("stderr_filter") {
		c.stderrFilters = nil
		for _, s := range raw.StderrFilters {
			rx, err := regexp.Compile(s)
			if err != nil {
				return fmt.Errorf("parse stderr_filter: %w", err)
			}
			c.stderrFilters = append(c.stderrFilters, rx)
		}
	}

	durations := []struct {
		key    string
		value  string
		target *time.Duration
	}{
		{"timeout", raw.Timeout, &c.responseTimeout},
		{"notification_timeout", raw.NotificationTimeout, &c.notificationTimeout},
		{"http_timeout", raw.HTTPTimeout, &c.httpTimeout},
		{"settle_delay", raw.SettleDelay, &c.settleDelay},
		{"grace_period", raw.GracePeriod, &c.gracePeriod},
		{"startup_delay", raw.StartupDelay, &c.startupDelay},
		{"daemon_startup_timeout", raw.DaemonStartupTimeout, &c.daemonStartupTimeout},
	}
	for _, d := range durations {
		if !use(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.target = parsed
	}
	return nil
}
