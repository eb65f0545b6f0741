package model

import "fmt"

// Scroll-blocking event types. Listeners for these events delay scrolling
// until the handler returns unless they are registered as passive.
const (
	EventWheel      = "wheel"
	EventMouseWheel = "mousewheel"
	EventTouchStart = "touchstart"
	EventTouchMove  = "touchmove"
)

// ScrollBlockingEvents lists the scroll-blocking event types in a fixed order.
var ScrollBlockingEvents = []string{
	EventWheel,
	EventMouseWheel,
	EventTouchStart,
	EventTouchMove,
}

// IsScrollBlocking reports whether eventType is one of ScrollBlockingEvents.
func IsScrollBlocking(eventType string) bool {
	for _, e := range ScrollBlockingEvents {
		if e == eventType {
			return true
		}
	}
	return false
}

// ListenerRecord is one event listener registration observed on the page.
// Field names match the PageLevelEventListeners gatherer output.
type ListenerRecord struct {
	// Type is the event name the listener was registered for.
	Type string `json:"type"`

	// URL is the URL of the script that registered the listener.
	URL string `json:"url"`

	// Line is the zero-based line of the registering call site.
	Line int `json:"line"`

	// Col is the zero-based column of the registering call site.
	Col int `json:"col"`

	// ObjectID is the human-readable target, such as "window" or
	// "document.body".
	ObjectID string `json:"objectId"` //nolint:tagliatelle // gatherer field name

	// Handler describes the listener function.
	Handler Handler `json:"handler"`

	// Passive is true when the listener was registered with {passive: true}.
	Passive bool `json:"passive"`
}

// Handler describes a listener function as rendered by the browser.
type Handler struct {
	// Description is the handler's source text.
	Description string `json:"description"`
}

// ViolationEntry is a listener that breaks the passive listener rule,
// together with a location label and a reconstructed call site.
type ViolationEntry struct {
	ListenerRecord

	// Label is "line: L, col: C".
	Label string `json:"label"`

	// Code is the reconstructed addEventListener call.
	Code string `json:"code"`
}

// NewViolationEntry builds the ViolationEntry for a listener record.
func NewViolationEntry(record ListenerRecord) ViolationEntry {
	return ViolationEntry{
		ListenerRecord: record,
		Label:          fmt.Sprintf("line: %d, col: %d", record.Line, record.Col),
		Code: fmt.Sprintf("%s.addEventListener('%s', %s)",
			record.ObjectID, record.Type, record.Handler.Description),
	}
}
