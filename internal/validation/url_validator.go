package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StreamExt is the playlist extension accepted in manifests.
const StreamExt = ".m3u8"

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("safe_url", validateSafeURL)
	_ = validate.RegisterValidation("stream_url", validateStreamURL)
}

// ValidateStreamURL checks that raw is a public http(s) link to an HLS playlist.
func ValidateStreamURL(raw string) error {
	if err := validate.Var(raw, "required,safe_url,stream_url"); err != nil {
		return fmt.Errorf("invalid stream URL %q: %w", raw, err)
	}
	return nil
}

func validateStreamURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), StreamExt)
}

func validateSafeURL(fl validator.FieldLevel) bool {
	urlStr := fl.Field().String()

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	host := u.Hostname()

	forbiddenHosts := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
		"169.254.169.254",
	}

	for _, forbidden := range forbiddenHosts {
		if strings.EqualFold(host, forbidden) {
			return false
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() {
			return false
		}
	}

	return true
}
