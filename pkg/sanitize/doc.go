// Package sanitize converts untrusted strings into values that are safe to
// store or insert into an HTML document. Two policies are available: text mode
// HTML-escapes every character so no markup survives, and HTML mode keeps an
// allow-list of formatting tags (backed by bluemonday). Script, object, embed,
// iframe, form and input elements and every inline event handler are removed
// under both policies.
//
// Text mode decodes entities once before escaping, which makes it idempotent:
// Sanitize(Sanitize(s, o), o) == Sanitize(s, o). Functions in this package
// never panic and never return errors; malformed input degrades to a stripped
// value.
package sanitize
