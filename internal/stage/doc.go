// Package stage models pipeline steps and threads them into a chain.
//
// A chain is planned before anything runs: Plan computes every step's input,
// output, and capture paths from the output directory, the input name, and the
// step label alone, so the same input always lands on the same files and a
// re-run overwrites the previous artifacts. Step i's output path is exactly
// step i+1's input path; chains never branch.
//
// Layout for input "ticTac.kif" under output directory "out":
//
//	out/ticTac.kif/simplified
//	out/ticTac.kif/simplified.stdout
//	out/ticTac.kif/simplified.stderr
//	out/ticTac.kif/reprinted
//	...
//
// Variant artifacts of a single stage are named "<label>.<variant>".
package stage
