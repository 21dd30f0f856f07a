package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const maxLocalBodyBytes = 1 << 20

// NewLocalServer hosts h over plain HTTP. Every route except /metrics is
// translated into the API Gateway event that Handle serves under Lambda.
func NewLocalServer(h *Handler, metrics http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders:  []string{echo.HeaderContentType, headerSessionID, headerCorrelationID},
		ExposeHeaders: []string{headerSessionID, headerCorrelationID},
	}))

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
	e.Any("/*", func(c echo.Context) error {
		event, err := toProxyRequest(c.Request())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		resp, err := h.Handle(c.Request().Context(), event)
		if err != nil {
			return err
		}
		contentType := echo.MIMEApplicationJSON
		for k, v := range resp.Headers {
			if http.CanonicalHeaderKey(k) == echo.HeaderContentType {
				contentType = v
				continue
			}
			c.Response().Header().Set(k, v)
		}
		return c.Blob(resp.StatusCode, contentType, []byte(resp.Body))
	})
	return e
}

func toProxyRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLocalBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("read request body: %w", err)
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	query := map[string]string{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  string(body),
	}, nil
}
