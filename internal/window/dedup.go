package window

// ShouldSend decides whether a newly detected window warrants a notification
// given the last window already sent for the same rule.
//
// A window equal to or fully contained within the previous one was already
// reported, possibly with a wider margin, and is suppressed. Any boundary
// change outward (extension, shift, or a disjoint new window) sends. This
// containment rule replaces a time-based cooldown: the same physical window,
// re-detected run after run as forecast data refreshes, yields at most one
// notification until its bounds genuinely change.
func ShouldSend(previous *Span, next Span) bool {
	if previous == nil {
		return true
	}
	if next.StartMs >= previous.StartMs && next.EndMs <= previous.EndMs {
		return false
	}
	return true
}
