package api

import "time"

// timeNow is the wall clock TaskHandler reads to resolve natural-language
// dates; a package-level var so tests can pin it without threading a
// clock through every handler signature.
var timeNow = func() time.Time { return time.Now().UTC() }
