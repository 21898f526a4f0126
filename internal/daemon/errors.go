package daemon

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/g960059/cliprelay/internal/api"
)

func daemonError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func notFound(path string) error {
	return daemonError("route not found", goerrors.CategoryNotFound, http.StatusNotFound, api.ErrNotFound, map[string]any{"path": path})
}

func methodNotAllowed() error {
	return daemonError("method not allowed", goerrors.CategoryBadInput, http.StatusMethodNotAllowed, api.ErrMethodNotAllowed, nil)
}

func payloadTooLarge(limit int64) error {
	return daemonError("payload too large", goerrors.CategoryBadInput, http.StatusRequestEntityTooLarge, api.ErrPayloadTooLarge, map[string]any{"limit_bytes": limit})
}

func badBody(source error) error {
	err := goerrors.Wrap(source, goerrors.CategoryBadInput, "failed to read request body").
		WithCode(http.StatusBadRequest).
		WithTextCode(api.ErrBadInput)
	return err
}

// writeAppError renders any error as the JSON error envelope. Errors that
// are not go-errors envelopes become 500 INTERNAL.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		s.logger.Error("unexpected handler error", "error", err)
		s.writeError(w, http.StatusInternalServerError, api.ErrInternal, "internal error")
		return
	}
	status := rich.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := rich.TextCode
	if code == "" {
		code = api.ErrInternal
	}
	s.writeError(w, status, code, rich.Message)
}
