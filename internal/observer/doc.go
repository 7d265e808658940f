// Package observer provides a typed listener list for change notifications.
//
// The store, the suggestion index and the context filter each expose their
// notifications through a List. Subscribe returns an unsubscribe func;
// calling it more than once is harmless.
//
// Listeners are isolated from one another. A panicking listener is logged
// with the list's name, counted through the onPanic hook, and skipped;
// delivery continues with the next listener. Notify runs listeners on the
// caller's goroutine, in subscription order, against a snapshot of the list,
// so a listener may subscribe or unsubscribe during delivery.
package observer
