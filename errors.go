package warsync

import "errors"

// Sentinel errors shared across the transport and stores.
var (
	// ErrNotConnected is returned by send-side calls while the connection
	// is anything other than open. Intents are never silently dropped.
	ErrNotConnected = errors.New("warsync: not connected")

	// ErrClosed is returned when an operation races with teardown.
	ErrClosed = errors.New("warsync: connection closed")

	// ErrAlreadyStarted is returned by Start on a store that is running.
	ErrAlreadyStarted = errors.New("warsync: already started")

	// ErrPluginNotFound is returned by Registry.Resolve for an unregistered
	// game path. Hosts render a fallback; they do not crash.
	ErrPluginNotFound = errors.New("warsync: game plugin not registered")

	// ErrDuplicatePlugin is returned by Registry.Register when the path is
	// already taken.
	ErrDuplicatePlugin = errors.New("warsync: game plugin path already registered")
)
