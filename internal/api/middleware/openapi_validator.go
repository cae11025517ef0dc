package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/api/contract"
	"hireguard.io/atssync/internal/pkg/logger"
)

const openAPIResponseValidationMessage = "response does not conform to OpenAPI contract"

var errNoCaller = errors.New("no authenticated caller in request context")

// MustOpenAPIValidator creates the validator from the embedded contract and
// panics on setup failure.
func MustOpenAPIValidator(basePath string) gin.HandlerFunc {
	doc, err := contract.Load()
	if err != nil {
		panic(fmt.Sprintf("load openapi contract: %v", err))
	}
	mw, err := NewOpenAPIValidator(doc, basePath)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator validates requests and responses against doc. Paths
// the document does not describe pass through untouched. The bearerAuth
// scheme is satisfied when JWTAuth has already populated the caller.
func NewOpenAPIValidator(doc *openapi3.T, basePath string) (gin.HandlerFunc, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}

	basePath = "/" + strings.Trim(strings.TrimSpace(basePath), "/")
	options := &openapi3filter.Options{
		AuthenticationFunc: func(ctx context.Context, _ *openapi3filter.AuthenticationInput) error {
			if GetSubject(ctx) == "" {
				return errNoCaller
			}
			return nil
		},
	}

	return func(c *gin.Context) {
		route, pathParams, err := findRoute(router, c.Request, basePath)
		if errors.Is(err, routers.ErrPathNotFound) {
			c.Next()
			return
		}
		if err != nil {
			abortWithOpenAPIError(c, http.StatusBadRequest, "OPENAPI_ROUTE_INVALID", err.Error())
			return
		}

		reqInput := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), reqInput); err != nil {
			status := http.StatusBadRequest
			var secErr *openapi3filter.SecurityRequirementsError
			if errors.As(err, &secErr) {
				status = http.StatusUnauthorized
			}
			abortWithOpenAPIError(c, status, "OPENAPI_REQUEST_INVALID", err.Error())
			return
		}

		buf := &responseBuffer{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = buf
		c.Next()

		respInput := &openapi3filter.ResponseValidationInput{
			RequestValidationInput: reqInput,
			Status:                 buf.status,
			Header:                 buf.Header().Clone(),
			Options:                options,
		}
		if buf.body.Len() > 0 {
			respInput.SetBodyBytes(buf.body.Bytes())
		}
		if err := openapi3filter.ValidateResponse(c.Request.Context(), respInput); err != nil {
			logger.Error("OpenAPI response validation failed",
				zap.String("request_id", GetRequestID(c.Request.Context())),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", buf.status),
				zap.Error(err),
			)
			buf.replace(http.StatusInternalServerError, "OPENAPI_RESPONSE_INVALID", openAPIResponseValidationMessage)
		}
		if err := buf.flush(); err != nil {
			logger.Warn("failed to flush buffered response",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
	}, nil
}

// trimBasePath maps a mounted path onto the contract's path space.
func trimBasePath(basePath, path string) string {
	switch {
	case basePath == "/" || path == "":
		return path
	case path == basePath:
		return "/"
	case strings.HasPrefix(path, basePath+"/"):
		return strings.TrimPrefix(path, basePath)
	}
	return path
}

// findRoute looks the request up as mounted, then with basePath stripped.
// The request URL is left as it was found.
func findRoute(router routers.Router, req *http.Request, basePath string) (*routers.Route, map[string]string, error) {
	path, rawPath := req.URL.Path, req.URL.RawPath
	defer func() { req.URL.Path, req.URL.RawPath = path, rawPath }()

	route, params, err := router.FindRoute(req)
	if !errors.Is(err, routers.ErrPathNotFound) {
		return route, params, err
	}
	stripped := trimBasePath(basePath, path)
	if stripped == path {
		return nil, nil, err
	}
	req.URL.Path, req.URL.RawPath = stripped, trimBasePath(basePath, rawPath)
	return router.FindRoute(req)
}

func abortWithOpenAPIError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// responseBuffer holds a handler's response until it has been checked
// against the contract.
type responseBuffer struct {
	gin.ResponseWriter
	body    bytes.Buffer
	status  int
	written bool
}

func (w *responseBuffer) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
}

func (w *responseBuffer) WriteHeaderNow() { w.written = true }

func (w *responseBuffer) Write(data []byte) (int, error) {
	w.written = true
	return w.body.Write(data)
}

func (w *responseBuffer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *responseBuffer) Status() int   { return w.status }
func (w *responseBuffer) Size() int     { return w.body.Len() }
func (w *responseBuffer) Written() bool { return w.written }

func (w *responseBuffer) replace(status int, code, message string) {
	w.status = status
	w.body.Reset()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(&w.body).Encode(map[string]string{"code": code, "message": message})
}

func (w *responseBuffer) flush() error {
	w.ResponseWriter.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}
