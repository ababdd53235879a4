package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/llmgate/llmgate/internal/auth"
	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/format"
	"github.com/llmgate/llmgate/internal/metrics"
	"github.com/llmgate/llmgate/internal/normalize"
	"github.com/llmgate/llmgate/internal/registry"
	"github.com/llmgate/llmgate/internal/tokencount"
	"github.com/llmgate/llmgate/internal/types"
	"github.com/llmgate/llmgate/internal/upstream"
)

type decodeFunc func(body []byte, compatDefault string) (*types.CanonicalRequest, error)

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, types.ShapeChat, normalize.FromChat)
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, types.ShapeText, normalize.FromText)
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, types.ShapeResponses, normalize.FromResponses)
}

func (s *Server) handleOllamaChat(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, types.ShapeOllama, normalize.FromOllama)
}

// serve runs the full pipeline for one request: decode, resolve the model,
// build the upstream payload, open the stream, interpret, format.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, shape types.Shape, decode decodeFunc) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, shape, http.StatusBadRequest, "failed to read request body", "bad_request")
		return
	}

	cr, err := decode(body, s.cfg.ReasoningCompat)
	if err != nil {
		s.fail(w, shape, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	entry, override, err := registry.Resolve(cr.Model)
	if err != nil {
		s.fail(w, shape, http.StatusBadRequest, err.Error(), "unsupported_model")
		return
	}
	cr.Model = entry.ID
	if cr.Reasoning == nil {
		cr.Reasoning = override
	} else if cr.Reasoning.Effort == "" && override != nil {
		cr.Reasoning.Effort = override.Effort
	}

	cr.SessionID = s.sessions.EnsureSessionID(cr.Instructions, cr.Input, strings.TrimSpace(r.Header.Get("X-Session-Id")))

	payload := upstream.BuildPayload(cr, entry, upstream.Defaults{
		ReasoningEffort:  s.cfg.ReasoningEffort,
		ReasoningSummary: s.cfg.ReasoningSummary,
		BaseInstructions: s.cfg.BaseInstructions,
		DefaultWebSearch: s.cfg.DefaultWebSearch,
	})

	stream, err := s.up.Stream(r.Context(), payload)
	if err != nil {
		s.upstreamFail(w, shape, err)
		return
	}

	interp := event.NewInterpreter(stream)
	now := time.Now()
	opts := format.Options{
		Model:           cr.RequestedModel,
		Created:         now.Unix(),
		CreatedAt:       now.UTC().Format("2006-01-02T15:04:05Z"),
		ResponseID:      fallbackID(shape),
		ReasoningCompat: cr.ReasoningCompat,
		IncludeUsage:    cr.IncludeUsage,
	}

	if cr.Stream {
		s.streamResponse(w, shape, interp, opts)
	} else {
		s.bufferedResponse(w, shape, cr, interp, opts)
	}
}

func (s *Server) streamResponse(w http.ResponseWriter, shape types.Shape, interp *event.Interpreter, opts format.Options) {
	switch shape {
	case types.ShapeChat:
		format.WriteSSEHeaders(w, http.StatusOK)
		format.NewChatStream(w, opts).Run(interp)
	case types.ShapeText:
		format.WriteSSEHeaders(w, http.StatusOK)
		format.NewTextStream(w, opts).Run(interp)
	case types.ShapeResponses:
		format.WriteSSEHeaders(w, http.StatusOK)
		format.NewResponsesStream(w, opts).Run(interp)
	case types.ShapeOllama:
		format.WriteNDJSONHeaders(w, http.StatusOK)
		format.NewOllamaStream(w, opts).Run(interp)
	}
	metrics.RequestsTotal.WithLabelValues(string(shape), "ok").Inc()
}

func (s *Server) bufferedResponse(w http.ResponseWriter, shape types.Shape, cr *types.CanonicalRequest, interp *event.Interpreter, opts format.Options) {
	res := format.Collect(interp)
	if res.Err != nil {
		s.fail(w, shape, http.StatusBadGateway, res.Err.Error(), "upstream_error")
		return
	}
	if res.Usage == nil {
		res.Usage = tokencount.EstimateUsage(cr.Input, cr.Instructions, res.Text)
	}

	switch shape {
	case types.ShapeChat:
		format.WriteJSON(w, http.StatusOK, format.BuildChatResponse(res, opts))
	case types.ShapeText:
		format.WriteJSON(w, http.StatusOK, format.BuildTextResponse(res, opts))
	case types.ShapeResponses:
		format.WriteJSON(w, http.StatusOK, format.BuildResponsesResponse(res, opts))
	case types.ShapeOllama:
		format.WriteJSON(w, http.StatusOK, format.BuildOllamaResponse(res, opts))
	}
	metrics.RequestsTotal.WithLabelValues(string(shape), "ok").Inc()
}

func (s *Server) fail(w http.ResponseWriter, shape types.Shape, status int, msg, outcome string) {
	metrics.RequestsTotal.WithLabelValues(string(shape), outcome).Inc()
	format.WriteShapeError(w, shape, status, msg)
}

func (s *Server) upstreamFail(w http.ResponseWriter, shape types.Shape, err error) {
	var ue *upstream.Error
	switch {
	case errors.Is(err, auth.ErrNoCredentials):
		s.fail(w, shape, http.StatusUnauthorized, "no upstream credentials; place an auth.json in $LLMGATE_HOME, $CODEX_HOME, ~/.llmgate or ~/.codex", "auth_error")
	case errors.As(err, &ue):
		status := ue.StatusCode
		if status == http.StatusUnauthorized {
			s.fail(w, shape, status, ue.Message, "auth_error")
			return
		}
		s.fail(w, shape, status, ue.Message, "upstream_error")
	default:
		log.WithError(err).Error("upstream request failed")
		s.fail(w, shape, http.StatusBadGateway, err.Error(), "upstream_error")
	}
}

// fallbackID supplies a response id for streams where the upstream never
// reported one.
func fallbackID(shape types.Shape) string {
	suffix, err := gonanoid.New(12)
	if err != nil {
		suffix = "000000000000"
	}
	switch shape {
	case types.ShapeText:
		return "cmpl-" + suffix
	case types.ShapeResponses:
		return "resp_" + suffix
	default:
		return "chatcmpl-" + suffix
	}
}
