package middleware

import (
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// TwilioSignatureHeader содержит подпись входящего вебхука.
const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature проверяет подпись вебхуков мессенджера.
type TwilioSignature struct {
	enabled   bool
	validator client.RequestValidator
	publicURL string
}

// NewTwilioSignature создаёт проверку подписи. publicURL задаёт внешний адрес сервиса,
// по которому мессенджер вызывает вебхук. Пустой authToken отключает проверку.
func NewTwilioSignature(authToken, publicURL string) *TwilioSignature {
	return &TwilioSignature{
		enabled:   authToken != "",
		validator: client.NewRequestValidator(authToken),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Middleware отклоняет запросы без корректной подписи.
func (t *TwilioSignature) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.enabled {
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get(TwilioSignatureHeader)
		if signature == "" {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}

		if !t.validator.Validate(t.requestURL(r), params, signature) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *TwilioSignature) requestURL(r *http.Request) string {
	if t.publicURL != "" {
		return t.publicURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
