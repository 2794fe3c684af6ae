package interfaces

import "github.com/bobmcallan/tamreport/internal/models"

// Observer receives structured events from the core
type Observer interface {
	Observe(ev models.Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ev models.Event)

// Observe calls f(ev)
func (f ObserverFunc) Observe(ev models.Event) { f(ev) }

// NopObserver discards events
var NopObserver Observer = ObserverFunc(func(models.Event) {})
