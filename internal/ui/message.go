package ui

import (
	"dojotap/internal/loader"
	"dojotap/internal/logflow"
)

// bootstrapLoadedMsg carries the result of a bootstrap load attempt back into
// the event loop.
type bootstrapLoadedMsg struct {
	result *loader.Result
}

// submitResultMsg carries the outcome of a progress submission. On error the
// summary is nil and the flow keeps its selection for an in-place retry.
type submitResultMsg struct {
	summary *logflow.Summary
	err     error
}
