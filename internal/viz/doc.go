// Package viz provides a terminal viewer for cohort trajectories.
//
// The viewer is a Bubble Tea program showing one individual at a time: an
// asciigraph line chart of the selected mass field, a time cursor, and the
// values at the cursor.
//
// # Key Bindings
//
//	←/→ h/l    - Move the time cursor
//	home/end   - Jump to the first or last step
//	↑/↓ k/j    - Select individual
//	F          - Cycle field (body weight, fat-free mass, fat mass)
//	T          - Cycle color themes
//	?          - Show help
//	Q          - Quit
package viz
