package proxy

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// HeaderFolder collapses a multi valued http.Header into the single valued
// map of an invocation reply. The second map is only filled by folders whose
// host accepts multi value headers. Fold fails rather than drop a value.
type HeaderFolder interface {
	Fold(header http.Header) (map[string]string, map[string][]string, error)
}

// BinaryCaseFolder lower cases header names and joins repeated values with a
// comma. Each set-cookie value past the first gets its own name, a case
// variation of "set-cookie", since api gateway treats names case sensitively
// while http clients don't. A reply can't hold more set-cookie values than
// there are case variations of the name (512).
type BinaryCaseFolder struct{}

func (BinaryCaseFolder) Fold(header http.Header) (map[string]string, map[string][]string, error) {
	headers := make(map[string]string, len(header))

	for name, values := range header {
		if len(values) == 0 {
			continue
		}

		key := strings.ToLower(name)

		if key != "set-cookie" {
			headers[key] = strings.Join(values, ",")
			continue
		}

		if variants := caseVariants(key); len(values) > variants {
			return nil, nil, errors.Errorf("%d %s values exceed the %d case variations of the header name", len(values), key, variants)
		}

		for i, v := range values {
			headers[binaryCase(key, i)] = v
		}
	}

	return headers, nil, nil
}

// MultiValueFolder fills both maps: the comma joined single values and the
// full multi value headers.
type MultiValueFolder struct{}

func (MultiValueFolder) Fold(header http.Header) (map[string]string, map[string][]string, error) {
	headers := make(map[string]string, len(header))
	multi := make(map[string][]string, len(header))

	for name, values := range header {
		if len(values) == 0 {
			continue
		}

		key := strings.ToLower(name)
		headers[key] = strings.Join(values, ",")
		multi[key] = append([]string(nil), values...)
	}

	return headers, multi, nil
}

// caseVariants returns how many distinct names binaryCase can produce from s.
func caseVariants(s string) int {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}

	return 1 << letters
}

// binaryCase toggles the case of the letters of s according to the bits of n,
// least significant bit first. Non letters are skipped and don't consume a
// bit. binaryCase(s, 0) is s.
func binaryCase(s string, n int) string {
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) {
			b.WriteRune(r)
			continue
		}

		if n&1 == 1 {
			r = toggleCase(r)
		}
		n >>= 1

		b.WriteRune(r)
	}

	return b.String()
}

func toggleCase(r rune) rune {
	if unicode.IsUpper(r) {
		return unicode.ToLower(r)
	}

	return unicode.ToUpper(r)
}
