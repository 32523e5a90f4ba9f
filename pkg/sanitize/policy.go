package sanitize

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	markupPolicyOnce sync.Once
	markupPolicyInst *bluemonday.Policy
)

// markupPolicy returns the shared allow-list used when AllowHTML is set.
// bluemonday policies are safe for concurrent use once built.
func markupPolicy() *bluemonday.Policy {
	markupPolicyOnce.Do(func() {
		policy := bluemonday.NewPolicy()
		policy.AllowElements(
			"p", "br", "strong", "b", "em", "i", "u",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"ul", "ol", "li", "blockquote", "code", "pre", "a",
		)

		policy.AllowAttrs("href").OnElements("a")
		policy.AllowURLSchemes("http", "https", "mailto", "tel")
		policy.RequireParseableURLs(true)
		policy.AllowRelativeURLs(false)
		policy.RequireNoFollowOnLinks(true)

		markupPolicyInst = policy
	})
	return markupPolicyInst
}
