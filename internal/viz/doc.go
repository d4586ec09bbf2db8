// Package viz renders trajectories, fits and parameter tables for the
// terminal: asciigraph line charts, lipgloss headers, and tabwriter tables.
// Nothing here feeds back into the model.
package viz
