package openapi

import (
	_ "embed"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
)

//go:embed keypad.v1.yaml
var embedded []byte

// embeddedParsed is the embedded document decoded once for the JSON route.
var embeddedParsed = sync.OnceValues(func() (any, error) {
	var doc any
	err := yaml.Unmarshal(embedded, &doc)
	return doc, err
})

// RegisterRoutes serves the control API description at /v1/openapi (YAML)
// and /v1/openapi.json. OPENAPI_SPEC_PATH replaces the embedded document,
// which helps when editing it on a running keypad.
func RegisterRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/v1/openapi", api.Handler(serve(false)))
	router.Method(http.MethodGet, "/v1/openapi.json", api.Handler(serve(true)))
}

func serve(asJSON bool) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		raw, override, err := source()
		if err != nil {
			return apperrors.NewInternalError("Failed to read OpenAPI document")
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if !asJSON {
			w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(raw)
			return nil
		}

		var doc any
		if override {
			err = yaml.Unmarshal(raw, &doc)
		} else {
			doc, err = embeddedParsed()
		}
		if err != nil {
			return apperrors.NewInternalError("Failed to parse OpenAPI document")
		}
		return api.WriteJSON(w, http.StatusOK, doc)
	}
}

func source() (raw []byte, override bool, err error) {
	path := os.Getenv("OPENAPI_SPEC_PATH")
	if path == "" {
		return embedded, false, nil
	}
	raw, err = os.ReadFile(path)
	return raw, true, err
}
