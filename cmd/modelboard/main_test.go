package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/modelboard/internal/config"
	"github.com/Faultbox/modelboard/internal/viewer"
	"github.com/Faultbox/modelboard/pkg/resource"
	"github.com/Faultbox/modelboard/pkg/scene"
)

const triangleOBJ = `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func TestLocatorFor(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "tri.obj")
	mtl := filepath.Join(dir, "tri.mtl")
	for _, p := range []string{obj, mtl} {
		if err := os.WriteFile(p, []byte(triangleOBJ), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"url", []string{"https://example.com/a.glb"}, "resource.RemoteURL"},
		{"data", []string{"data:model/stl;base64,AAAA"}, "resource.DataURI"},
		{"path", []string{obj}, "resource.LocalPath"},
		{"file set", []string{obj, mtl}, "resource.FileSet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := locatorFor(tt.args)
			if err != nil {
				t.Fatal(err)
			}
			var got string
			switch l := loc.(type) {
			case resource.RemoteURL:
				got = "resource.RemoteURL"
			case resource.DataURI:
				got = "resource.DataURI"
			case resource.LocalPath:
				got = "resource.LocalPath"
				if !filepath.IsAbs(l.Path) {
					t.Errorf("path %q is not absolute", l.Path)
				}
			case resource.FileSet:
				got = "resource.FileSet"
				if len(l.Files) != 2 || l.Files[0].Name != "tri.obj" {
					t.Errorf("files = %+v", l.Files)
				}
			}
			if got != tt.want {
				t.Errorf("locator type = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := locatorFor([]string{obj, filepath.Join(dir, "missing.png")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not exist", err)
	}
}

func TestResolverOptions(t *testing.T) {
	c := config.Default()
	if o := resolverOptions(c); o.DeliveryURL != "" || o.ProxyURL != "" {
		t.Errorf("no base URL should read in-process: %+v", o)
	}

	c.Delivery.BaseURL = "http://localhost:8080/"
	o := resolverOptions(c)
	if o.DeliveryURL != "http://localhost:8080/api/local" || o.ProxyURL != "" {
		t.Errorf("options = %+v", o)
	}

	c.Delivery.UseProxy = true
	if o := resolverOptions(c); o.ProxyURL != "http://localhost:8080/api/proxy" {
		t.Errorf("proxy URL = %q", o.ProxyURL)
	}
}

func TestLoggerOptions(t *testing.T) {
	l := config.Default().Logging
	l.Format = "json"
	l.LogFile = "/var/log/modelboard.log"

	o := loggerOptions(l)
	if o.Level != "info" || o.Format != "json" || o.Console != os.Stderr {
		t.Errorf("options = %+v", o)
	}
	if o.File.Path != l.LogFile || o.File.MaxSizeMB != 50 || !o.File.Compress {
		t.Errorf("file = %+v", o.File)
	}
}

func TestSessionOptionsRejectsBadColors(t *testing.T) {
	c := config.Default()
	c.Viewer.Background = "nope"
	if _, err := sessionOptions(c); !errors.Is(err, scene.ErrInvalidColor) {
		t.Errorf("error = %v", err)
	}

	c = config.Default()
	c.Annotation.Color = "#12"
	if _, err := sessionOptions(c); !errors.Is(err, scene.ErrInvalidColor) {
		t.Errorf("error = %v", err)
	}
}

func TestPrintInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tri.obj")
	if err := os.WriteFile(path, []byte(triangleOBJ), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := sessionOptions(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	s := viewer.New(opts)
	defer s.Close()

	res, err := s.Load(context.Background(), resource.LocalPath{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	home, _ := s.Home()

	var buf bytes.Buffer
	printInspect(&buf, res, s.Root(), home)
	out := buf.String()
	for _, want := range []string{"Main:    tri.obj", "Format:  obj", "1 triangles", "Camera home:", "Center: (0.5, 0.5, 0)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
