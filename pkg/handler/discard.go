package handler

import "encoding/json"

// discardNotifier drops every notification. Useful in tests and as the
// sink for contexts that have no transport to stream to.
type discardNotifier struct{}

// DiscardNotifier returns a Notifier that drops everything.
func DiscardNotifier() Notifier {
	return discardNotifier{}
}

func (discardNotifier) Debug(string)                                {}
func (discardNotifier) Info(string)                                 {}
func (discardNotifier) Warn(string)                                 {}
func (discardNotifier) Error(string)                                {}
func (discardNotifier) Log(string, string, any)                     {}
func (discardNotifier) Progress(json.RawMessage, float64, *float64) {}
func (discardNotifier) ToolsChanged()                               {}
func (discardNotifier) ResourcesChanged()                           {}
func (discardNotifier) PromptsChanged()                             {}
func (discardNotifier) Custom(string, any)                          {}
