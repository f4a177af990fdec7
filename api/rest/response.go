package rest

import (
	"encoding/json"
	"net/http"

	"github.com/abearman/mindful-sub000/api/request"
	"github.com/abearman/mindful-sub000/service"
)

type ErrorDetails struct {
	Code      service.ErrorCode `json:"code,omitempty"`
	Retryable bool              `json:"retryable"`
}

type ErrorBody struct {
	Message string       `json:"message"`
	Details ErrorDetails `json:"details"`
}

func jsonResponse(headers map[string]string, status int, body any) request.Response {
	raw, err := json.Marshal(body)
	if err != nil {
		return errorResponse(headers, http.StatusInternalServerError, messageFor(service.CodeInternalError), service.CodeInternalError)
	}

	out := copyHeaders(headers)
	out["Content-Type"] = "application/json"
	return request.Response{StatusCode: status, Headers: out, Body: raw}
}

func errorResponse(headers map[string]string, status int, message string, code service.ErrorCode) request.Response {
	body := ErrorBody{Message: message, Details: ErrorDetails{Code: code}}
	if code != "" {
		body.Details.Retryable = code.Retryable()
	}
	raw, _ := json.Marshal(body)

	out := copyHeaders(headers)
	out["Content-Type"] = "application/json"
	return request.Response{StatusCode: status, Headers: out, Body: raw}
}

func copyHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	return out
}

func writeResponse(w http.ResponseWriter, resp request.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}
