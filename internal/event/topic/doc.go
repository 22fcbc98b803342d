// Package topic defines the Topic type used to address subscriber groups on the
// event bus.
//
// # Topic Format
//
// A topic is any non-empty string. Names are opaque to the bus: there is no
// hierarchy, no wildcard expansion and no normalisation, so "Order.Created" and
// "order.created" are two unrelated topics.
//
//	orderCreated
//	billing.invoice.paid
//	user/42/profile
//
// # Usage
//
//	t := topic.Topic("orderCreated")
//	if err := t.Validate(); err != nil {
//	    return err
//	}
package topic
