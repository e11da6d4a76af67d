package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

const sseDataPrefix = "data: "

// stream pushes the caller's derived task list whenever it changes. Browsers
// cannot set headers on EventSource, so the token may come as a query param.
func (s *server) stream(c echo.Context) error {
	header := authHeader(c)
	if token := c.QueryParam("token"); header == "" && token != "" {
		header = "Bearer " + token
	}
	userID, b, ok := s.session(c, header)
	if !ok {
		return nil
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	logger := s.logger.WithField("user", userID)
	ctx := c.Request().Context()
	updates := b.Derived().Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.Done():
			logger.Debug("session closed, ending stream")
			return nil
		case tasks, open := <-updates:
			if !open {
				return nil
			}
			data, err := sonic.Marshal(tasks)
			if err != nil {
				logger.WithError(err).Error("encode stream payload")
				return err
			}
			if _, err := res.Write([]byte(sseDataPrefix)); err != nil {
				return err
			}
			if _, err := res.Write(data); err != nil {
				return err
			}
			if _, err := res.Write([]byte("\n\n")); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
