package proxy

import (
	"fmt"
	"strings"
)

// HttpMethod is an enum of the standard Http Methods.
type HttpMethod int

const (
	GET HttpMethod = iota
	HEAD
	POST
	PUT
	DELETE
	CONNECT
	OPTIONS
	TRACE
	PATCH
)

var httpMethodNames = [...]string{"GET", "HEAD", "POST", "PUT", "DELETE", "CONNECT", "OPTIONS", "TRACE", "PATCH"}

func (method HttpMethod) String() string {
	if method < GET || int(method) >= len(httpMethodNames) {
		return fmt.Sprintf("HttpMethod(%d)", int(method))
	}

	return httpMethodNames[method]
}

// ParseHttpMethod returns the HttpMethod named by s. The comparison ignores
// case.
func ParseHttpMethod(s string) (HttpMethod, error) {
	upper := strings.ToUpper(s)

	for i, name := range httpMethodNames {
		if name == upper {
			return HttpMethod(i), nil
		}
	}

	return 0, fmt.Errorf("unsupported http method '%s'", s)
}
