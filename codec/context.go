package codec

import "fmt"

// Context collects the warnings of one codec call. Codecs report recoverable
// oddities here instead of failing; the caller decides what to do with them
// after the operation returns. Every warning is also mirrored to the package
// logger at Warn level.
//
// A nil *Context is valid: warnings are still logged, just not collected.
// Contexts are per-call values and not safe for concurrent use.
type Context struct {
	warnings []string
}

// NewContext returns an empty warning collector.
func NewContext() *Context { return &Context{} }

// Warnf records a formatted warning.
func (c *Context) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Logger().Warn(msg)
	if c == nil {
		return
	}
	c.warnings = append(c.warnings, msg)
}

// Warnings returns the warnings recorded so far, in order.
func (c *Context) Warnings() []string {
	if c == nil {
		return nil
	}
	return c.warnings
}
