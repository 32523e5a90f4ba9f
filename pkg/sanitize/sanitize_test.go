package sanitize_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-secureform/pkg/sanitize"
)

func TestSanitize_TextModeEscapesMarkup(t *testing.T) {
	cases := []struct {
		name string
		in   string
		opts sanitize.Options
		want string
	}{
		{
			name: "tags escaped",
			in:   "<b>hi</b>",
			opts: sanitize.Options{},
			want: "&lt;b&gt;hi&lt;/b&gt;",
		},
		{
			name: "quotes escaped",
			in:   `O'Brien "Jr"`,
			opts: sanitize.Options{},
			want: "O&#39;Brien &#34;Jr&#34;",
		},
		{
			name: "script block removed when stripping",
			in:   "Hello<script>alert(1)</script>World",
			opts: sanitize.Options{StripScripts: true},
			want: "HelloWorld",
		},
		{
			name: "encoded script block removed when stripping",
			in:   "&lt;script&gt;alert(1)&lt;/script&gt;ok",
			opts: sanitize.Options{StripScripts: true},
			want: "ok",
		},
		{
			name: "inline handler is escaped, not removed",
			in:   "<img src=x onerror=alert(1)>",
			opts: sanitize.Options{StripScripts: true},
			want: "&lt;img src=x onerror=alert(1)&gt;",
		},
		{
			name: "nested payload does not reassemble",
			in:   "<scr<script>x</script>ipt>alert(1)</script>",
			opts: sanitize.Options{StripScripts: true},
			want: "",
		},
		{
			name: "handler-like words survive",
			in:   "onion=secret9",
			opts: sanitize.DefaultOptions(),
			want: "onion=secret9",
		},
		{
			name: "scheme-like words survive",
			in:   "read javascript: the good parts",
			opts: sanitize.DefaultOptions(),
			want: "read javascript: the good parts",
		},
		{
			name: "control characters dropped and whitespace trimmed",
			in:   "  a\x00b\x07c  ",
			opts: sanitize.Options{},
			want: "abc",
		},
		{
			name: "truncation never splits an entity",
			in:   "a<b",
			opts: sanitize.Options{MaxLength: 3},
			want: "a",
		},
		{
			name: "truncation counts runes",
			in:   "héllo wörld",
			opts: sanitize.Options{MaxLength: 4},
			want: "héll",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sanitize.Sanitize(tc.in, tc.opts)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("sanitized value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSanitize_TextModeIsIdempotent(t *testing.T) {
	inputs := []string{
		"plain text",
		"a &amp; b",
		"AT&T <rocks>",
		"<script>alert('x')</script>",
		"&lt;already escaped&gt;",
		"  padded value  ",
		"O'Brien & \"friends\" <3",
		strings.Repeat("<&>", 50),
		"emoji ☕ and accents é",
	}
	optionSets := []sanitize.Options{
		{},
		{StripScripts: true},
		{MaxLength: 7},
		sanitize.DefaultOptions(),
	}

	for _, opts := range optionSets {
		for _, in := range inputs {
			once := sanitize.Sanitize(in, opts)
			twice := sanitize.Sanitize(once, opts)
			if once != twice {
				t.Fatalf("expected idempotent output for %q with %+v: %q != %q", in, opts, once, twice)
			}
			if strings.ContainsAny(once, "<>") {
				t.Fatalf("expected no raw angle brackets for %q, got %q", in, once)
			}
		}
	}
}

func TestSanitize_NeverEmitsScriptTag(t *testing.T) {
	payloads := []string{
		"<script>alert(1)</script>",
		"<SCRIPT src=//evil.example></SCRIPT>",
		"before<script type=\"text/javascript\">steal()</script>after",
		"<p>ok</p><script>alert(1)</script>",
		"<scr<script>ipt>alert(1)</script>",
	}

	for _, payload := range payloads {
		for _, opts := range []sanitize.Options{
			{AllowHTML: false},
			{AllowHTML: false, StripScripts: true},
			{AllowHTML: true},
			{AllowHTML: true, StripScripts: true},
		} {
			got := strings.ToLower(sanitize.Sanitize(payload, opts))
			if strings.Contains(got, "<script") {
				t.Fatalf("expected no script tag for %q with %+v, got %q", payload, opts, got)
			}
		}
	}
}

func TestSanitize_HTMLModeAllowList(t *testing.T) {
	in := `<p onclick="steal()">Hello <strong>there</strong> ` +
		`<a href="javascript:alert(1)">bad</a> ` +
		`<a href="https://example.com">good</a></p>` +
		`<iframe src="https://evil.example"></iframe><form><input name="x"></form>`

	got := sanitize.Sanitize(in, sanitize.Options{AllowHTML: true})

	for _, fragment := range []string{"onclick", "javascript", "<iframe", "<form", "<input"} {
		if strings.Contains(strings.ToLower(got), fragment) {
			t.Fatalf("expected %q to be removed, got %q", fragment, got)
		}
	}
	for _, fragment := range []string{"<p>", "<strong>there</strong>", `href="https://example.com"`, "nofollow"} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("expected %q to survive, got %q", fragment, got)
		}
	}
}

func TestSanitize_HTMLModeStripsOnlyInsideTags(t *testing.T) {
	in := `<p onclick="x()">onion=secret9 and javascript: talk</p><a href="javascript:alert(1)">link</a>`

	got := sanitize.Sanitize(in, sanitize.Options{AllowHTML: true, StripScripts: true})

	if !strings.Contains(got, "onion=secret9 and javascript: talk") {
		t.Fatalf("expected text content to survive, got %q", got)
	}
	if strings.Contains(got, "onclick") || strings.Contains(got, "alert") {
		t.Fatalf("expected handler and script link to be removed, got %q", got)
	}
}

func TestSanitize_HTMLModeAllowsContactSchemes(t *testing.T) {
	got := sanitize.Sanitize(`<a href="mailto:owner@example.com">mail</a> <a href="tel:+15551234567">call</a>`, sanitize.Options{AllowHTML: true})
	if !strings.Contains(got, `href="mailto:owner@example.com"`) {
		t.Fatalf("expected mailto link to survive, got %q", got)
	}
	if !strings.Contains(got, `href="tel:+15551234567"`) {
		t.Fatalf("expected tel link to survive, got %q", got)
	}
}

func TestSanitizeReport(t *testing.T) {
	unchanged := sanitize.SanitizeReport("  hello world ", sanitize.DefaultOptions())
	if unchanged.Changed {
		t.Fatalf("expected trimming alone not to count as a change: %+v", unchanged)
	}
	if unchanged.Value != "hello world" {
		t.Fatalf("expected trimmed value, got %q", unchanged.Value)
	}

	changed := sanitize.SanitizeReport("<b>x</b>", sanitize.Options{})
	want := sanitize.Report{
		Value:           "&lt;b&gt;x&lt;/b&gt;",
		Changed:         true,
		OriginalLength:  8,
		SanitizedLength: 20,
	}
	if diff := cmp.Diff(want, changed); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldHelpers(t *testing.T) {
	if got := sanitize.Email("  John@EXAMPLE.Com "); got != "John@example.com" {
		t.Fatalf("unexpected email: %q", got)
	}
	if got := sanitize.Phone("+1 (555)  123-4567 ext"); got != "+1 (555) 123-4567" {
		t.Fatalf("unexpected phone: %q", got)
	}
	if got := sanitize.URL("javascript:alert(1)"); got != "" {
		t.Fatalf("expected script URL to be rejected, got %q", got)
	}
	if got := sanitize.URL(" HTTPS://Example.com/path?q=1 "); got != "https://example.com/path?q=1" {
		t.Fatalf("unexpected url: %q", got)
	}
}
