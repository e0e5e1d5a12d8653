package studio

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Locales the page is translated into. English is the default.
var Locales = []language.Tag{language.English, language.Indonesian}

var messages = catalog.NewBuilder(catalog.Fallback(language.English))

func init() {
	set := func(tag language.Tag, key, msg string) {
		if err := messages.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
	set(language.English, string(StatusConnecting), "Connecting to ComfyUI...")
	set(language.English, string(StatusGenerating), "Generating image...")
	set(language.English, CanceledError, CanceledError)
	set(language.English, FallbackError, FallbackError)
	set(language.English, TimeoutError, TimeoutError)

	set(language.Indonesian, string(StatusConnecting), "Menghubungkan ke ComfyUI...")
	set(language.Indonesian, string(StatusGenerating), "Sedang membuat gambar...")
	set(language.Indonesian, CanceledError, "Pembuatan gambar dibatalkan")
	set(language.Indonesian, FallbackError, "Pembuatan gambar gagal. Periksa koneksi.")
	set(language.Indonesian, TimeoutError, "Waktu pembuatan gambar habis")
}

func printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag, message.Catalog(messages))
}

// StatusText renders a status code for display in locale.
func StatusText(status Status, locale string) string {
	if status == StatusNone {
		return ""
	}
	return printer(locale).Sprintf(string(status))
}

// ErrorText translates the fixed error messages; anything else, such as a
// backend's status text, is shown as is.
func ErrorText(msg, locale string) string {
	switch msg {
	case CanceledError, FallbackError, TimeoutError:
		return printer(locale).Sprintf(msg)
	default:
		return msg
	}
}
