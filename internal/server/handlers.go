package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leofalp/unillm/core/client"
	"github.com/leofalp/unillm/core/parse"
	"github.com/leofalp/unillm/providers/ai"
)

type healthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

type providerInfo struct {
	Name         string `json:"name"`
	DefaultModel string `json:"default_model"`
	Streaming    bool   `json:"streaming"`
}

type providersResponse struct {
	Providers []providerInfo `json:"providers"`
}

type modelsResponse struct {
	Provider string         `json:"provider"`
	Models   []ai.ModelInfo `json:"models"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Providers: s.Providers()})
}

func (s *Server) handleProviders(c echo.Context) error {
	names := s.Providers()
	out := providersResponse{Providers: make([]providerInfo, 0, len(names))}
	for _, name := range names {
		cl := s.clients[name]
		out.Providers = append(out.Providers, providerInfo{
			Name:         name,
			DefaultModel: cl.DefaultModel(),
			Streaming:    cl.SupportsStreaming(),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleListModels(c echo.Context) error {
	cl, err := s.clientFor(c)
	if err != nil {
		return err
	}
	models, err := cl.ListModels(c.Request().Context())
	if err != nil {
		return err
	}
	if models == nil {
		models = []ai.ModelInfo{}
	}
	return c.JSON(http.StatusOK, modelsResponse{Provider: cl.Provider(), Models: models})
}

func (s *Server) handleGetModel(c echo.Context) error {
	cl, err := s.clientFor(c)
	if err != nil {
		return err
	}
	model, err := cl.GetModel(c.Request().Context(), c.Param("model"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model)
}

func (s *Server) handleGenerate(c echo.Context) error {
	cl, req, err := s.clientAndRequest(c)
	if err != nil {
		return err
	}
	resp, err := cl.Generate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCountTokens(c echo.Context) error {
	cl, req, err := s.clientAndRequest(c)
	if err != nil {
		return err
	}
	count, err := cl.CountTokens(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, count)
}

// clientFor resolves the :provider path parameter.
func (s *Server) clientFor(c echo.Context) (*client.Client, error) {
	name := c.Param("provider")
	cl, ok := s.clients[name]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("provider %q is not configured", name))
	}
	return cl, nil
}

func (s *Server) clientAndRequest(c echo.Context) (*client.Client, *ai.GenerationRequest, error) {
	cl, err := s.clientFor(c)
	if err != nil {
		return nil, nil, err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, nil, err
	}
	req, err := decodeRequest(body)
	if err != nil {
		return nil, nil, err
	}
	return cl, req, nil
}

// decodeRequest parses and validates a unified request body. Anything that
// is not a valid request is reported as a ValidationError on "body".
func decodeRequest(body []byte) (*ai.GenerationRequest, error) {
	req, err := parse.Request(body)
	if err == nil {
		return req, nil
	}
	var validationErr *ai.ValidationError
	if errors.As(err, &validationErr) {
		return nil, validationErr
	}
	return nil, &ai.ValidationError{Field: "body", Reason: err.Error()}
}
