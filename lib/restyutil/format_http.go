package restyutil

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

var secretFields = []string{"password", "passwd", "secret", "pin", "token"}

func isSecretField(name string) bool {
	name = strings.ToLower(name)
	for _, f := range secretFields {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		for _, v := range headers[k] {
			lower := strings.ToLower(k)
			if lower == "cookie" || lower == "set-cookie" || lower == "authorization" {
				v = "<redacted>"
			}
			out = append(out, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(out, "\n")
}

func formatForm(values url.Values) string {
	if len(values) == 0 {
		return "<NO BODY>"
	}
	redacted := url.Values{}
	for k, vals := range values {
		for _, v := range vals {
			if isSecretField(k) {
				v = "<redacted>"
			}
			redacted.Add(k, v)
		}
	}
	return redacted.Encode()
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request form body, secrets redacted
// 5: response status
// 6: response url
// 7: response headers in ("Key: Value" format)
// 8: response body
const messageInfoTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

func formatHttpMessage(res *resty.Response) string {
	responseUrl := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		responseUrl = res.RawResponse.Request.URL.String()
	}

	return fmt.Sprintf(
		messageInfoTemplate,

		res.Request.Method, res.Request.URL,
		formatHeaders(res.Request.Header),
		formatForm(res.Request.FormData),

		strconv.Itoa(res.StatusCode()), responseUrl,
		formatHeaders(res.Header()),
		res.String(),
	)
}
