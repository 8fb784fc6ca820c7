package server

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/metasphere-xyz/texttransform/internal/apierr"
	"github.com/metasphere-xyz/texttransform/internal/plan"
	"github.com/metasphere-xyz/texttransform/internal/version"
)

// handleTransform runs one operation end to end and records the
// request metric with the final status.
func (s *Server) handleTransform(op plan.Operation) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return apierr.BadRequest("invalid_params", "failed to read request body")
		}
		resp, aerr := s.svc.Do(c.Request().Context(), op, body)
		if aerr != nil {
			s.metrics.RecordRequest(string(op), aerr.Status, time.Since(start).Seconds())
			return aerr
		}
		s.metrics.RecordRequest(string(op), http.StatusOK, time.Since(start).Seconds())
		return c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type apiInfo struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	Status            string   `json:"status"`
	SupportedVersions []string `json:"supported_versions"`
}

type endpointInfo struct {
	URL         string   `json:"url"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type contactInfo struct {
	Support string `json:"support"`
	Issues  string `json:"issues"`
}

type welcomeDoc struct {
	API           apiInfo                 `json:"api"`
	Endpoints     map[string]endpointInfo `json:"endpoints"`
	Documentation string                  `json:"documentation"`
	Contact       contactInfo             `json:"contact"`
}

func (s *Server) handleWelcome(c echo.Context) error {
	base := "/text/" + version.APIVersion
	return c.JSON(http.StatusOK, welcomeDoc{
		API: apiInfo{
			Name:              "Text Transform API",
			Version:           version.LatestVersion,
			Status:            "operational",
			SupportedVersions: version.SupportedVersions,
		},
		Endpoints: map[string]endpointInfo{
			"compress": {
				URL:         base + "/compress",
				Methods:     []string{http.MethodPost},
				Description: "Create concise versions of text",
			},
			"expand": {
				URL:         base + "/expand",
				Methods:     []string{http.MethodPost},
				Description: "Expand and elaborate on text",
			},
			"rephrase": {
				URL:         base + "/rephrase",
				Methods:     []string{http.MethodPost},
				Description: "Rewrite text at its original length",
			},
		},
		Documentation: "https://api.metasphere.xyz/docs",
		Contact: contactInfo{
			Support: "support@metasphere.xyz",
			Issues:  "https://github.com/metasphere-xyz/texttransform/issues",
		},
	})
}

// handleExamples serves ready-to-send request bodies for one operation.
func (s *Server) handleExamples(op plan.Operation) echo.HandlerFunc {
	examples := examplesFor(op)
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, examples)
	}
}

func examplesFor(op plan.Operation) map[string]map[string]any {
	const sentence = "The quick brown fox jumps over the lazy dog while the sun sets in the west, casting long shadows across the verdant meadow."

	switch op {
	case plan.OpCompress:
		return map[string]map[string]any{
			"single_compression": {
				"content":           sentence,
				"target_percentage": 50,
				"style":             "detail",
			},
			"multiple_versions": {
				"content":           sentence,
				"target_percentage": 50,
				"versions":          3,
				"style":             "explain",
			},
			"staggered_compression": {
				"content":           sentence,
				"start_percentage":  80,
				"target_percentage": 30,
				"steps_percentage":  10,
				"style":             "example",
			},
			"fragment_compression": {
				"content": []string{
					"The quick brown fox jumps over the lazy dog.",
					"The sun sets in the west, casting long shadows.",
				},
				"target_percentage": 50,
				"versions":          2,
				"fragment_style":    "bullet",
			},
			"custom_compression": {
				"content":            sentence,
				"target_percentages": []int{75, 50, 25},
				"style":              "explain",
				"tone":               "academic",
				"aspects":            []string{"context", "examples"},
			},
		}
	case plan.OpExpand:
		return map[string]map[string]any{
			"single_expansion": {
				"content":           "The quick brown fox jumps over the lazy dog.",
				"target_percentage": 200,
				"style":             "elaborate",
			},
			"multiple_versions": {
				"content":           "The quick brown fox jumps over the lazy dog.",
				"target_percentage": 150,
				"versions":          3,
				"style":             "explain",
			},
			"staggered_expansion": {
				"content":           "The quick brown fox jumps over the lazy dog.",
				"start_percentage":  120,
				"target_percentage": 200,
				"steps_percentage":  20,
				"style":             "detail",
			},
			"fragment_expansion": {
				"content": []string{
					"The quick brown fox jumps.",
					"The lazy dog sleeps.",
				},
				"target_percentage": 150,
				"versions":          2,
				"style":             "example",
				"fragment_style":    "narrative",
				"aspects":           []string{"context", "implications"},
			},
		}
	default:
		return map[string]map[string]any{
			"single_rephrase": {
				"content":  "The quick brown fox jumps over the lazy dog.",
				"versions": 3,
				"style":    "casual",
			},
			"fragment_rephrase": {
				"content": []string{
					"The quick brown fox jumps.",
					"The lazy dog sleeps.",
				},
				"versions": 2,
				"style":    "formal",
				"tone":     "conversational",
			},
			"styled_rephrase": {
				"content":  "The quick brown fox jumps over the lazy dog.",
				"versions": 2,
				"style":    "technical",
				"aspects":  []string{"technical_details", "implications"},
			},
		}
	}
}
