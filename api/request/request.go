// Package request turns every supported trigger into one normalized Request.
//
// Three inbound shapes exist: a plain net/http request, an API Gateway REST
// proxy event (claims under requestContext.authorizer.claims) and an API
// Gateway HTTP API event (claims under requestContext.authorizer.jwt.claims).
// The shape is resolved once, here, and nothing downstream looks at it again.
package request

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const MaxBodyBytes = 1 << 20

var (
	ErrUnknownEvent = errors.New("unrecognised event shape")
	ErrBadBody      = errors.New("unreadable request body")
)

type Request struct {
	// UserId is set only when an upstream authorizer already verified the
	// caller. Otherwise the handler verifies Token itself.
	UserId string
	Method string
	Path   string
	Origin string
	Token  string
	Body   []byte
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

type Kind int

const (
	KindHTTP Kind = iota
	KindRESTProxy
	KindHTTPAPI
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindRESTProxy:
		return "rest-proxy"
	case KindHTTPAPI:
		return "http-api"
	}
	return "unknown"
}

// Event is a tagged union over the inbound shapes. Exactly the field that
// matches Kind is set.
type Event struct {
	Kind      Kind
	HTTP      *http.Request
	RESTProxy *events.APIGatewayProxyRequest
	HTTPAPI   *events.APIGatewayV2HTTPRequest
}

func Normalize(ev Event) (Request, error) {
	switch ev.Kind {
	case KindHTTP:
		if ev.HTTP != nil {
			return FromHTTP(ev.HTTP)
		}
	case KindRESTProxy:
		if ev.RESTProxy != nil {
			return FromRESTProxy(*ev.RESTProxy)
		}
	case KindHTTPAPI:
		if ev.HTTPAPI != nil {
			return FromHTTPAPI(*ev.HTTPAPI)
		}
	}
	return Request{}, ErrUnknownEvent
}

// ResolveLambdaEvent decides which API Gateway payload raw is. HTTP API
// events carry "version": "2.0"; REST proxy events carry "httpMethod".
func ResolveLambdaEvent(raw json.RawMessage) (Event, error) {
	var probe struct {
		Version    string `json:"version"`
		HTTPMethod string `json:"httpMethod"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUnknownEvent, err)
	}

	switch {
	case probe.Version == "2.0":
		var ev events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &ev); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrUnknownEvent, err)
		}
		return Event{Kind: KindHTTPAPI, HTTPAPI: &ev}, nil
	case probe.HTTPMethod != "":
		var ev events.APIGatewayProxyRequest
		if err := json.Unmarshal(raw, &ev); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrUnknownEvent, err)
		}
		return Event{Kind: KindRESTProxy, RESTProxy: &ev}, nil
	}
	return Event{}, ErrUnknownEvent
}

func FromHTTP(r *http.Request) (Request, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		if err != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrBadBody, err)
		}
		if len(body) > MaxBodyBytes {
			return Request{}, fmt.Errorf("%w: body too large", ErrBadBody)
		}
	}

	return Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Origin: r.Header.Get("Origin"),
		Token:  bearerToken(r.Header.Get("Authorization")),
		Body:   body,
	}, nil
}

func FromRESTProxy(ev events.APIGatewayProxyRequest) (Request, error) {
	body, err := eventBody(ev.Body, ev.IsBase64Encoded)
	if err != nil {
		return Request{}, err
	}

	var userId string
	if claims, ok := ev.RequestContext.Authorizer["claims"].(map[string]interface{}); ok {
		userId = claimString(claims, "sub")
	}

	return Request{
		UserId: userId,
		Method: ev.HTTPMethod,
		Path:   ev.Path,
		Origin: header(ev.Headers, "Origin"),
		Token:  bearerToken(header(ev.Headers, "Authorization")),
		Body:   body,
	}, nil
}

func FromHTTPAPI(ev events.APIGatewayV2HTTPRequest) (Request, error) {
	body, err := eventBody(ev.Body, ev.IsBase64Encoded)
	if err != nil {
		return Request{}, err
	}

	var userId string
	if a := ev.RequestContext.Authorizer; a != nil && a.JWT != nil {
		userId = a.JWT.Claims["sub"]
	}

	return Request{
		UserId: userId,
		Method: ev.RequestContext.HTTP.Method,
		Path:   ev.RawPath,
		Origin: header(ev.Headers, "Origin"),
		Token:  bearerToken(header(ev.Headers, "Authorization")),
		Body:   body,
	}, nil
}

func eventBody(body string, isBase64 bool) ([]byte, error) {
	if !isBase64 {
		return []byte(body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	return decoded, nil
}

// header looks a name up case-insensitively; API Gateway forwards headers
// with whatever casing the client used.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func claimString(claims map[string]interface{}, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

func bearerToken(authHeader string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
}
