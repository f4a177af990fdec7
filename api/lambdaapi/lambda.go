// Package lambdaapi adapts API Gateway invocations to the REST handler.
package lambdaapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/abearman/mindful-sub000/api/request"
	"github.com/abearman/mindful-sub000/api/rest"
	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

type Handler struct {
	Rest   *rest.Handler
	Logger *zap.Logger
}

func NewHandler(restHandler *rest.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Rest: restHandler, Logger: logger}
}

// Handle accepts either API Gateway payload and answers in the same shape.
// Errors are always expressed as HTTP responses so API Gateway never sees a
// failed invocation for a bad request.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (any, error) {
	ev, err := request.ResolveLambdaEvent(raw)
	if err != nil {
		h.Logger.Warn("unrecognised lambda event", zap.Error(err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       `{"message":"Unsupported event"}`,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}

	var resp request.Response
	req, err := request.Normalize(ev)
	if refusal, refused := h.Rest.Guard(); refused {
		resp = refusal
	} else if err != nil {
		decision := cors.Decide(h.Rest.Cors, originOf(ev))
		resp = request.Response{
			StatusCode: http.StatusBadRequest,
			Headers:    decision.Headers,
			Body:       []byte(`{"message":"Invalid request body","details":{"code":"BadRequest","retryable":false}}`),
		}
	} else {
		resp = h.Rest.Serve(ctx, req)
	}

	if ev.Kind == request.KindHTTPAPI {
		return toHTTPAPIResponse(resp), nil
	}
	return toRESTProxyResponse(resp), nil
}

func originOf(ev request.Event) string {
	var headers map[string]string
	switch ev.Kind {
	case request.KindRESTProxy:
		headers = ev.RESTProxy.Headers
	case request.KindHTTPAPI:
		headers = ev.HTTPAPI.Headers
	}
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "Origin" {
			return v
		}
	}
	return ""
}

func toRESTProxyResponse(resp request.Response) events.APIGatewayProxyResponse {
	body, isBase64 := encodeBody(resp.Body)
	return events.APIGatewayProxyResponse{
		StatusCode:      resp.StatusCode,
		Headers:         resp.Headers,
		Body:            body,
		IsBase64Encoded: isBase64,
	}
}

func toHTTPAPIResponse(resp request.Response) events.APIGatewayV2HTTPResponse {
	body, isBase64 := encodeBody(resp.Body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode:      resp.StatusCode,
		Headers:         resp.Headers,
		Body:            body,
		IsBase64Encoded: isBase64,
	}
}

func encodeBody(body []byte) (string, bool) {
	if json.Valid(body) || len(body) == 0 {
		return string(body), false
	}
	return base64.StdEncoding.EncodeToString(body), true
}
