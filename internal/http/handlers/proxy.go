package handlers

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"turbogen/internal/infra"
)

// NewDevProxy forwards requests to the ComfyUI base URL. It is mounted under
// the public prefix with the prefix stripped, so /api/view reaches /view.
func NewDevProxy(baseURL string, logger *infra.Logger) (http.Handler, error) {
	target, err := url.Parse(baseURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("dev proxy: invalid target %q", baseURL)
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn().Err(err).Str("path", r.URL.Path).Msg("dev proxy: upstream failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"code":"bad_gateway","message":"ComfyUI unreachable"}}`))
		},
	}, nil
}
