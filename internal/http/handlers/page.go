package handlers

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"turbogen/internal/middleware"
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

var pageCatalog = catalog.NewBuilder(catalog.Fallback(language.English))

func init() {
	labels := map[language.Tag][][2]string{
		language.English: {
			{"placeholder", "Describe the image you want..."},
			{"generate", "Generate"},
			{"generating", "Generating..."},
			{"download", "Download"},
			{"cancel", "Cancel"},
			{"empty", "Your image will appear here"},
		},
		language.Indonesian: {
			{"placeholder", "Jelaskan gambar yang Anda inginkan..."},
			{"generate", "Buat"},
			{"generating", "Sedang membuat..."},
			{"download", "Unduh"},
			{"cancel", "Batal"},
			{"empty", "Gambar Anda akan muncul di sini"},
		},
	}
	for tag, pairs := range labels {
		for _, kv := range pairs {
			if err := pageCatalog.SetString(tag, kv[0], kv[1]); err != nil {
				panic(err)
			}
		}
	}
}

type pageData struct {
	Lang   string
	Labels map[string]string
	State  stateResponse
}

func pageLabels(locale string) map[string]string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag, message.Catalog(pageCatalog))
	out := make(map[string]string, 6)
	for _, key := range []string{"placeholder", "generate", "generating", "download", "cancel", "empty"} {
		out[key] = p.Sprintf(key)
	}
	return out
}

// Page renders the studio page with the session's current state inlined.
func (a *App) Page(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.controller(w, r)
	if !ok {
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	a.Logger.Debug().
		Str("locale", locale).
		Str("country", middleware.CountryFromContext(r.Context())).
		Msg("render page")
	data := pageData{
		Lang:   locale,
		Labels: pageLabels(locale),
		State:  viewState(ctrl.State(), locale),
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		a.Logger.Error().Err(err).Msg("render page")
		a.error(w, http.StatusInternalServerError, "internal", "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
