package sensor

// Event is a registry-originated callback occurrence. The set of variants is
// closed: ValueChanged, AccuracyChanged, Triggered and DiscoveryEvent.
type Event interface {
	eventSealed()
}

// ValueChanged carries a new reading.
type ValueChanged struct {
	Reading Reading
}

// AccuracyChanged reports a change in the accuracy of a device.
type AccuracyChanged struct {
	Device   Device
	Accuracy Accuracy
}

// Triggered carries the result of a one-shot registration.
type Triggered struct {
	Trigger TriggerEvent
}

// DiscoveryEvent reports a device connecting or disconnecting.
type DiscoveryEvent struct {
	Device    Device
	Direction Direction
}

func (ValueChanged) eventSealed()    {}
func (AccuracyChanged) eventSealed() {}
func (Triggered) eventSealed()       {}
func (DiscoveryEvent) eventSealed()  {}

// Listener is the callback object installed with a registry. Notify may be
// called from any goroutine and must not block.
type Listener interface {
	// ID identifies the listener for logging and bookkeeping.
	ID() string

	// Notify delivers one event.
	Notify(evt Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc struct {
	Name string
	Fn   func(Event)
}

// ID returns the listener name.
func (f *ListenerFunc) ID() string { return f.Name }

// Notify calls Fn.
func (f *ListenerFunc) Notify(evt Event) { f.Fn(evt) }
