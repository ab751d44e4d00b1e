package webhook

import (
	"net/http"

	"github.com/tidwall/gjson"
)

// handshake handles the protocol-specific verification handshakes that
// precede all other processing (§4.4 step 1). handled reports whether req was a
// handshake at all; when true, resp is the response to send and no further
// processing should occur.
func handshake(service string, req *http.Request, body []byte, secret string) (resp Response, handled bool) {
	switch service {
	case "fitbit":
		code := req.URL.Query().Get("verify")
		if code == "" {
			return Response{}, false
		}
		if code == secret {
			return Response{Status: 204}, true
		}
		return Response{Status: 404}, true

	case "microsoft":
		token := req.URL.Query().Get("validationToken")
		if token == "" {
			return Response{}, false
		}
		return Response{Status: 200, Body: plainText(token)}, true

	case "slack":
		if gjson.GetBytes(body, "type").String() == "url_verification" {
			challenge := gjson.GetBytes(body, "challenge").String()
			return Response{Status: 200, Body: plainText(challenge)}, true
		}
		return Response{}, false

	case "notion":
		if token := gjson.GetBytes(body, "verification_token").String(); token != "" {
			return Response{Status: 200, Body: map[string]string{"verification_token": token}}, true
		}
		return Response{}, false

	default:
		return Response{}, false
	}
}

// plainText marks a body as text/plain rather than JSON for the router to
// write verbatim (the Microsoft/Slack handshakes must echo the raw token,
// not a JSON-quoted string).
type plainText string
