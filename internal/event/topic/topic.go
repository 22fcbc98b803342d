package topic

import "errors"

// ErrEmpty is returned by Validate for the empty topic.
var ErrEmpty = errors.New("topic must not be empty")

// Topic names an independent channel of subscribers, for example "orderCreated"
// or "billing.invoice.paid". Topics are compared byte for byte: matching is exact
// and case-sensitive, and dots carry no meaning to the bus.
type Topic string

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// IsValid reports whether the topic can be subscribed to or published on.
// The only requirement is that it is non-empty.
func (t Topic) IsValid() bool {
	return t != ""
}

// Validate returns ErrEmpty for an empty topic and nil otherwise.
func (t Topic) Validate() error {
	if !t.IsValid() {
		return ErrEmpty
	}
	return nil
}

// Equal reports whether two topics address the same channel.
func (t Topic) Equal(other Topic) bool {
	return t == other
}

// FromString creates a Topic from a string.
// This is mainly for clarity when converting from string literals.
func FromString(s string) Topic {
	return Topic(s)
}
