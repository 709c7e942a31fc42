package messaging

import "log"

// Notifier shows a short message to the operator. Calls are fire-and-forget.
type Notifier interface {
	Notify(kind, message, caption, icon string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind, message, caption, icon string)

func (f NotifierFunc) Notify(kind, message, caption, icon string) { f(kind, message, caption, icon) }

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	LogFunc LogFunc
}

func (n LogNotifier) Notify(kind, message, caption, _ string) {
	logFn := n.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	logFn("notify [%s]: %s (%s)", kind, message, caption)
}

// MultiNotifier fans a notification out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(kind, message, caption, icon string) {
	for _, n := range m {
		n.Notify(kind, message, caption, icon)
	}
}

func safeNotify(n Notifier, logFn LogFunc, kind, message, caption, icon string) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logFn("messaging: notifier failed: %v", r)
		}
	}()
	n.Notify(kind, message, caption, icon)
}
