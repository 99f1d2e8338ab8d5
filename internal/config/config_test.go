package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server defaults
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected shutdown timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}

	// Delivery defaults
	if cfg.Delivery.AllowOrigin != "*" {
		t.Errorf("expected allow origin *, got %s", cfg.Delivery.AllowOrigin)
	}
	if cfg.Delivery.BaseURL != "" {
		t.Errorf("expected in-process local files by default, got %s", cfg.Delivery.BaseURL)
	}

	// Viewer defaults
	if cfg.Viewer.FovDegrees != 60 || cfg.Viewer.Margin != 1.5 || cfg.Viewer.RescaleThreshold != 100 {
		t.Errorf("unexpected framing defaults: %+v", cfg.Viewer)
	}
	if cfg.Viewer.MinDistanceRatio != 0.05 || cfg.Viewer.MaxDistanceRatio != 20 {
		t.Errorf("unexpected distance ratios: %v %v", cfg.Viewer.MinDistanceRatio, cfg.Viewer.MaxDistanceRatio)
	}

	// Annotation defaults
	if cfg.Annotation.Color != "#000000" || cfg.Annotation.LineWidth != 2 || cfg.Annotation.FontSize != 16 {
		t.Errorf("unexpected annotation defaults: %+v", cfg.Annotation)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Viewer.Ambient != 0.6 || cfg.Viewer.LightElevation != 48 {
		t.Errorf("unexpected lighting defaults: %+v", cfg.Viewer)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  addr: "127.0.0.1:9000"
  shutdown_timeout: 2s

delivery:
  base_url: "http://localhost:9000"
  use_proxy: true
  local_roots: ["/srv/models", "/data"]
  allow_origin: "https://board.example.com"

viewer:
  width: 1920
  height: 1080
  dpr: 2
  damping: 0

annotation:
  color: "#ff0000"
  line_width: 4

logging:
  level: "debug"
  log_file: "modelboard.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("expected addr 127.0.0.1:9000, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Errorf("expected shutdown timeout 2s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Delivery.UseProxy || cfg.Delivery.BaseURL != "http://localhost:9000" {
		t.Errorf("delivery not loaded: %+v", cfg.Delivery)
	}
	if len(cfg.Delivery.LocalRoots) != 2 || cfg.Delivery.LocalRoots[0] != "/srv/models" {
		t.Errorf("local roots = %v", cfg.Delivery.LocalRoots)
	}
	if cfg.Viewer.Width != 1920 || cfg.Viewer.DPR != 2 {
		t.Errorf("viewer not loaded: %+v", cfg.Viewer)
	}
	if cfg.Viewer.Damping != 0 {
		t.Errorf("expected explicit damping 0, got %v", cfg.Viewer.Damping)
	}
	// Unset keys keep defaults.
	if cfg.Viewer.FovDegrees != 60 {
		t.Errorf("expected default fov 60, got %v", cfg.Viewer.FovDegrees)
	}
	if cfg.Annotation.Color != "#ff0000" || cfg.Annotation.FontSize != 16 {
		t.Errorf("annotation = %+v", cfg.Annotation)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "modelboard.log" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
viewer:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileStrictAndExpanded(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODELS_DIR", "/srv/models")

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("delivery:\n  local_roots: [\"${MODELS_DIR}\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, good); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Delivery.LocalRoots) != 1 || cfg.Delivery.LocalRoots[0] != "/srv/models" {
		t.Errorf("local roots = %v", cfg.Delivery.LocalRoots)
	}

	typo := filepath.Join(dir, "typo.yaml")
	if err := os.WriteFile(typo, []byte("viewer:\n  widht: 800\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := loadFromFile(Default(), typo); err == nil {
		t.Error("unknown key accepted")
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := loadFromFile(Default(), empty); err != nil {
		t.Errorf("empty file: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":7070\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Viewer.Width = 0 }},
		{"dpr below one", func(c *Config) { c.Viewer.DPR = 0.5 }},
		{"no line width", func(c *Config) { c.Annotation.LineWidth = 0 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	os.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("viewer:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "addr flag",
			setup: func() { *flagAddr = ":9999" },
			verify: func(cfg *Config) {
				if cfg.Server.Addr != ":9999" {
					t.Errorf("expected addr :9999, got %s", cfg.Server.Addr)
				}
			},
			teardown: func() { *flagAddr = "" },
		},
		{
			name: "delivery flags",
			setup: func() {
				*flagDeliveryURL = "http://localhost:8080"
				*flagProxy = true
			},
			verify: func(cfg *Config) {
				if cfg.Delivery.BaseURL != "http://localhost:8080" || !cfg.Delivery.UseProxy {
					t.Errorf("delivery = %+v", cfg.Delivery)
				}
			},
			teardown: func() {
				*flagDeliveryURL = ""
				*flagProxy = false
			},
		},
		{
			name: "viewport flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
				*flagDPR = 2
			},
			verify: func(cfg *Config) {
				if cfg.Viewer.Width != 2560 || cfg.Viewer.Height != 1440 || cfg.Viewer.DPR != 2 {
					t.Errorf("viewer = %+v", cfg.Viewer)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
				*flagDPR = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestFlagSetParses(t *testing.T) {
	defer func() {
		*flagLocalRoots = nil
		*flagWidth = 0
	}()

	if err := FlagSet().Parse([]string{"--local-root", "/a", "--local-root=/b", "--width", "640"}); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	applyFlags(cfg)
	if strings.Join(cfg.Delivery.LocalRoots, ",") != "/a,/b" {
		t.Errorf("local roots = %v", cfg.Delivery.LocalRoots)
	}
	if cfg.Viewer.Width != 640 {
		t.Errorf("width = %d", cfg.Viewer.Width)
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
viewer:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width from flag, height from file.
	if cfg.Viewer.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Viewer.Width)
	}
	if cfg.Viewer.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Viewer.Height)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Delivery.LocalRoots = []string{"/srv/models"}

	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatal(err)
	}
	if loaded.Delivery.LocalRoots[0] != "/srv/models" || loaded.Server.ShutdownTimeout != cfg.Server.ShutdownTimeout {
		t.Errorf("round trip lost values: %+v", loaded)
	}

	var buf bytes.Buffer
	if err := cfg.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "shutdown_timeout: 5s") {
		t.Errorf("durations should encode as strings:\n%s", buf.String())
	}
}
