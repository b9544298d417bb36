package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed static/index.html
var widgetPage []byte

// IndexHandler serves the chat widget.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(widgetPage)
}
