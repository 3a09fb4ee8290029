// Package feedback bridges a session to a render host over socket.io.
//
// The render host sends `feedback` events when the user drags a widget;
// each one becomes a Session.Feedback call. In the other direction every
// engine notification is forwarded as an `event` message so the host can
// redraw status and results.
package feedback
