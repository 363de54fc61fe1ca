// Package events carries task lifecycle notifications out of the service
// layer.
//
// Services emit a TaskEvent after a change has been committed. Handlers are
// registered on an emitter at startup; the notification dispatcher is one
// such handler and decides on its own how, or whether, to deliver anything.
//
// The primary components are:
// - TaskEvent: a generated, completed, skipped or deleted notice
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
// - AsyncDispatcher: an EventEmitter that queues events for a worker pool
package events
