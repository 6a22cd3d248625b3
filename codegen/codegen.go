// Package codegen implements the build-time half of the framework's
// execution model: given an assembled router, it emits one Go source file
// per registered route key, each a standalone `func main()` suitable for a
// FaaS deployment target that expects one binary (or one handler) per
// route rather than one process serving every route.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	ingest "github.com/ingestfw/ingest"
)

// RouteSource is one emitted entry file: its route key and the formatted
// Go source that implements it.
type RouteSource struct {
	Method   string
	Path     string
	Filename string
	Source   []byte
}

var entryTemplate = template.Must(template.New("entry").Parse(`// Code generated by ingest/codegen. DO NOT EDIT.

package main

import (
	"log"
	"net/http"
	"os"

	"github.com/ingestfw/ingest/adapters"

	app "{{.Package}}"
)

// This file is the entry for route: {{.Method}} {{.Path}}
// It bootstraps the application's full host (every plugin factory and
// every registered route), so the binary answers any route the host
// registers; the route table is not filtered down to this entry.
func main() {
	host := app.NewHost()
	if err := host.Bootstrap(); err != nil {
		log.Fatal(err)
	}

	addr := os.Getenv("PORT")
	if addr == "" {
		addr = "8080"
	}

	handler := adapters.Native(host, "ingest_session", []byte(os.Getenv("INGEST_SESSION_SECRET")))
	log.Fatal(http.ListenAndServe(":"+addr, handler))
}
`))

// Generate walks every route key registered on router and renders one
// entry file per route into outDir. pkg is the import path of the
// application package whose NewHost() constructs the PluginHost (the
// generated file imports it, bootstraps it and serves it whole; it does
// not restrict the host to the file's route).
func Generate(router *ingest.ActionRouter, pkg, outDir string) ([]RouteSource, error) {
	keys := router.RouteKeys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("codegen: router has no registered routes")
	}

	sources := make([]RouteSource, 0, len(keys))
	for _, key := range keys {
		method, path, ok := strings.Cut(key, " ")
		if !ok {
			return nil, fmt.Errorf("codegen: malformed route key %q", key)
		}

		var buf bytes.Buffer
		if err := entryTemplate.Execute(&buf, struct {
			Package string
			Method  string
			Path    string
		}{Package: pkg, Method: method, Path: path}); err != nil {
			return nil, fmt.Errorf("codegen: rendering entry for %q: %w", key, err)
		}

		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("codegen: formatting entry for %q: %w", key, err)
		}

		sources = append(sources, RouteSource{
			Method:   method,
			Path:     path,
			Filename: entryFilename(method, path),
			Source:   src,
		})
	}

	if outDir != "" {
		if err := writeAll(outDir, sources); err != nil {
			return nil, err
		}
	}

	return sources, nil
}

func writeAll(outDir string, sources []RouteSource) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("codegen: creating %s: %w", outDir, err)
	}
	for _, s := range sources {
		dir := filepath.Join(outDir, strings.ToLower(s.Method))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("codegen: creating %s: %w", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, s.Filename), s.Source, 0o644); err != nil {
			return fmt.Errorf("codegen: writing %s: %w", s.Filename, err)
		}
	}
	return nil
}

// entryFilename turns a route path into a deterministic, filesystem-safe
// Go source filename, e.g. "/users/:id" -> "users__id.go".
func entryFilename(method, path string) string {
	clean := strings.Trim(path, "/")
	if clean == "" {
		clean = "root"
	}
	clean = strings.NewReplacer(
		"/", "__",
		":", "",
		"*", "wild",
	).Replace(clean)
	return strings.ToLower(clean) + ".go"
}
