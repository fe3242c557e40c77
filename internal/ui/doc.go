// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI drives the three-tap logging loop:
//  1. [TaskListView] : Browse tasks, toggle pins, pick a task to log
//  2. [CountView] : Pick a count increment tile
//  3. [MinutesView] : Enter minutes spent and submit
//  4. [AuthView] : Shown when no usable session or cache exists
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Bootstrap results and submission outcomes arrive as messages from commands,
// keeping the event loop non-blocking.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, p, r, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
