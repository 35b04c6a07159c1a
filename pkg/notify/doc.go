// Package notify is the notification boundary used to report sync failures.
//
// A Notifier receives each failure once. The application composes two sinks:
//
//	sink := notify.Multi{
//		notify.NewLogNotifier(log),            // operator diagnostic
//		notify.NewFlashNotifier(sessions, log), // non-blocking toast
//	}
//
// Neither sink returns an error or panics; a notice that cannot be delivered
// is logged and dropped.
package notify
