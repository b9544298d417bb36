package utils

import (
	"net/http"
	"strings"
	"unicode/utf8"

	_ "github.com/akolanti/AskStan/cmd/api/docs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"
)

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("askstan/records"))

func GetNewUUID() string {
	return uuid.New().String()
}

// GetStableUUID derives the same id for the same parts on every run.
func GetStableUUID(parts ...string) string {
	return uuid.NewSHA1(recordNamespace, []byte(strings.Join(parts, "#"))).String()
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

type RouterClient struct {
	Router *chi.Mux
}

func GetChiURLParam(request *http.Request, key string) string {
	return chi.URLParam(request, key)
}

// GetRouter returns a fresh router with swagger and prometheus mounted.
func GetRouter() RouterClient {
	router := chi.NewRouter()
	InitSwagger(router)
	router.Handle("/metrics", promhttp.Handler())
	return RouterClient{Router: router}
}

func InitSwagger(r *chi.Mux) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}

// TruncateRunes cuts s to at most limit characters, appending suffix when cut.
func TruncateRunes(s string, limit int, suffix string) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + suffix
}
