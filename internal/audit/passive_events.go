package audit

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/nao1215/passivescan/internal/model"
)

// PassiveEventsAuditName is the identifier of PassiveEventsAudit.
const PassiveEventsAuditName = "uses-passive-event-listeners"

// listenersNotRunMessage is the debug string for a missing listener artifact.
const listenersNotRunMessage = "PageLevelEventListeners gatherer did not run"

// preventDefaultPattern finds a `.preventDefault()` call in handler source.
//
// The match is textual. Aliased calls (`const pd = e.preventDefault; pd()`)
// are missed, and a call inside a comment or string literal still matches.
var preventDefaultPattern = regexp.MustCompile(`\.preventDefault\(\s*\)`)

// PassiveEventsAudit checks that page-level scroll-blocking listeners
// registered by first-party scripts are passive.
//
// A listener violates the rule when all of the following hold:
//  1. its script is served from the page's host (exact host match)
//  2. it listens for wheel, mousewheel, touchstart or touchmove
//  3. it is not passive
//  4. its handler source does not call preventDefault()
type PassiveEventsAudit struct{}

// NewPassiveEventsAudit creates a new PassiveEventsAudit.
func NewPassiveEventsAudit() *PassiveEventsAudit {
	return &PassiveEventsAudit{}
}

// Meta returns the audit descriptor.
func (a *PassiveEventsAudit) Meta() model.AuditMeta {
	return model.AuditMeta{
		Category:    CategoryJavaScript,
		Name:        PassiveEventsAuditName,
		Description: "Site uses passive event listeners to improve scrolling performance",
		HelpText: `<a href="https://www.chromestatus.com/features/5745543795965952" target="_blank">Passive event listeners</a> ` +
			`enable better scrolling performance. If you don't call <code>preventDefault()</code> in your ` +
			`<code>` + strings.Join(model.ScrollBlockingEvents, ",") + `</code> event listeners, make them passive: ` +
			`<code>addEventListener('touchstart', ..., {passive: true})</code>.`,
		RequiredArtifacts: []string{model.ArtifactURL, model.ArtifactPageLevelEventListeners},
	}
}

// Run validates the artifacts and classifies the page's listeners.
func (a *PassiveEventsAudit) Run(_ context.Context, artifacts *model.Artifacts) (model.AuditResult, error) {
	records, pageHost, early := validateListeners(artifacts)
	if early != nil {
		return *early, nil
	}
	return classifyListeners(records, pageHost), nil
}

// validateListeners checks the listener artifact. It returns the records and
// the page host when the artifact is ready, or the result to report instead.
// The page host is empty when the final URL has no host.
func validateListeners(artifacts *model.Artifacts) ([]model.ListenerRecord, string, *model.AuditResult) {
	var listeners model.ListenerArtifact
	if artifacts != nil {
		listeners = artifacts.PageLevelEventListeners
	}

	if failure, ok := listeners.Failure(); ok {
		result := failure.AuditResult()
		return nil, "", &result
	}
	if records, ok := listeners.Listeners(); ok {
		pageHost, _ := HostOf(artifacts.FinalURL())
		return records, pageHost, nil
	}
	return nil, "", &model.AuditResult{
		RawValue:    model.RawValueNotRun,
		DebugString: listenersNotRunMessage,
	}
}

// classifyListeners returns the audit result for a set of listener records.
// Violations keep the input order.
func classifyListeners(records []model.ListenerRecord, pageHost string) model.AuditResult {
	violations := make([]model.ViolationEntry, 0)

	for _, record := range records {
		if !isViolation(record, pageHost) {
			continue
		}
		violations = append(violations, model.NewViolationEntry(record))
	}

	return model.AuditResult{
		RawValue: model.RawValueFromBool(len(violations) == 0),
		ExtendedInfo: &model.ExtendedInfo{
			Formatter: model.FormatterURLList,
			Value:     violations,
		},
	}
}

// isViolation applies the four listener checks.
func isViolation(record model.ListenerRecord, pageHost string) bool {
	return SameHost(record.URL, pageHost) &&
		model.IsScrollBlocking(record.Type) &&
		!record.Passive &&
		!CallsPreventDefault(record.Handler.Description)
}

// CallsPreventDefault reports whether handler source text contains a
// `.preventDefault()` call. See preventDefaultPattern for its limits.
func CallsPreventDefault(source string) bool {
	return preventDefaultPattern.MatchString(source)
}

// SameHost reports whether rawURL is served from pageHost. A URL without a
// host never matches, and an empty pageHost matches nothing.
func SameHost(rawURL, pageHost string) bool {
	host, ok := HostOf(rawURL)
	return ok && host == pageHost
}

// HostOf returns the lower-cased host (with port) of rawURL and true, or ""
// and false when rawURL has no host.
//
// When the path, query or fragment fails to parse, the host is read from the
// scheme://authority prefix alone.
func HostOf(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return authorityHost(rawURL)
	}
	if u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Host), true
}

// authorityHost parses only the scheme://authority prefix of rawURL.
func authorityHost(rawURL string) (string, bool) {
	scheme, rest, found := strings.Cut(rawURL, "://")
	if !found || scheme == "" {
		return "", false
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	u, err := url.Parse(scheme + "://" + rest)
	if err != nil || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Host), true
}
