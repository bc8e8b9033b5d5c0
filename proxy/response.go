package proxy

import (
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
)

// ResponseTranslator converts a buffered local http response into an
// invocation reply.
type ResponseTranslator struct {
	BinaryMimeTypes BinaryMimeTypes
	Folder          HeaderFolder
}

// Translate builds the reply for the given status, headers and body. The
// header is not modified. It fails when the headers can't be folded without
// losing a value.
func (t *ResponseTranslator) Translate(status int, header http.Header, body []byte) (events.APIGatewayProxyResponse, error) {
	header = canonicalHeader(header)
	header.Del("Transfer-Encoding")

	folder := t.Folder
	if folder == nil {
		folder = BinaryCaseFolder{}
	}
	headers, multi, err := folder.Fold(header)
	if err != nil {
		return events.APIGatewayProxyResponse{}, errors.Wrap(err, "failed folding response headers")
	}

	response := events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           headers,
		MultiValueHeaders: multi,
	}

	if t.isBinary(header) {
		response.Body = base64.StdEncoding.EncodeToString(body)
		response.IsBase64Encoded = true
	} else {
		response.Body = string(body)
	}

	return response, nil
}

func (t *ResponseTranslator) isBinary(header http.Header) bool {
	if len(t.BinaryMimeTypes) == 0 {
		return false
	}

	return t.BinaryMimeTypes.Match(header.Get("Content-Type"))
}

// canonicalHeader copies h with every name in canonical form.
func canonicalHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))

	for name, values := range h {
		for _, v := range values {
			out.Add(name, v)
		}
	}

	return out
}

// errorResponse is the reply for an invocation that failed before a local
// response was available.
func errorResponse(status int, err error) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{},
		Body:       err.Error(),
	}
}
