// Package validate exposes the secure input pipeline over net/http.
//
// POST {route}/{form} runs a full submit for the named form and responds with
// the sanitized values and any field or form errors (422 when invalid, 429
// when the form's action limit is exhausted). POST {route}/{form}/fields/{field}
// runs the live single-field check. Every request first passes an optional
// guard and a per-client token bucket.
package validate
