package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// trackingParams are stripped before hashing or comparing a URL, per
// spec.md §4.5's "tracking-param strip" requirement.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "fbclid": true, "gclid": true,
	"igshid": true, "ref": true, "spm": true,
}

// NormalizeURL lowercases scheme and host, strips tracking query
// parameters, and sorts the remaining ones, so two URLs that differ only
// by analytics noise canonicalize to the same string.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	q := u.Query()
	for key := range q {
		if trackingParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := url.Values{}
	for _, k := range keys {
		for _, v := range q[k] {
			values.Add(k, v)
		}
	}
	u.RawQuery = values.Encode()
	u.Fragment = ""
	return u.String()
}

// HashURL returns the canonical hash of a (possibly already normalized) URL.
func HashURL(canonicalURL string) string {
	if canonicalURL == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

var embeddedURLRe = regexp.MustCompile(`https?://\S+`)

// NormalizeContent folds title+body to a content-hash-ready form: Unicode
// NFKC folding (so full-width and compatibility variants of the same glyph
// collapse together), lowercasing, embedded-URL canonicalization, and
// whitespace collapse.
func NormalizeContent(title, body string) string {
	combined := title + "\n" + body
	combined = embeddedURLRe.ReplaceAllStringFunc(combined, func(u string) string {
		return NormalizeURL(u)
	})
	folded := norm.NFKC.String(combined)
	folded = strings.ToLower(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// HashContent hashes the output of NormalizeContent.
func HashContent(title, body string) string {
	normalized := NormalizeContent(title, body)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

var titlePunctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// stopwords is a small, fixed list; it exists to keep the rare-title-token
// blocking key from firing on function words, not to do general NLP.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "at": true,
	"of": true, "to": true, "for": true, "and": true, "or": true, "is": true,
	"are": true, "was": true, "were": true, "with": true, "by": true,
	"from": true, "as": true, "it": true, "this": true, "that": true,
	"now": true, "update": true,
}

// TitleTokens lowercases, strips punctuation, and drops stopwords, folding
// duplicates into a set.
func TitleTokens(title string) map[string]bool {
	folded := norm.NFKC.String(strings.ToLower(title))
	folded = titlePunctuation.ReplaceAllString(folded, " ")
	tokens := map[string]bool{}
	for _, tok := range strings.Fields(folded) {
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

// URLDomain extracts the lowercased host from a URL, used as a coarse
// blocking key when the full canonical URL doesn't match exactly.
func URLDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
