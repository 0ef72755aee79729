package api

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"sigs.k8s.io/yaml"
)

//go:embed openapi.yaml
var openAPISource []byte

// openAPIDocument converts the embedded YAML description to JSON. When
// baseURL is set the servers list points at it instead of the relative path.
func openAPIDocument(baseURL string) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPISource, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi.yaml: %w", err)
	}
	if baseURL = strings.TrimRight(baseURL, "/"); baseURL != "" {
		doc["servers"] = []map[string]string{{"url": baseURL + "/api/v1"}}
	}
	return json.Marshal(doc)
}

// OpenAPIHandler serves the API description as JSON with a content ETag.
func OpenAPIHandler(baseURL string) http.HandlerFunc {
	body, err := openAPIDocument(baseURL)
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`

	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			http.Error(w, "openapi unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=300")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
