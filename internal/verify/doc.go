// Package verify compares the canonicalized outputs of several implementations
// of one stage.
//
// Artifacts are treated as sequences of lines and nothing more. Two policies
// exist:
//
//   - Exact match: two sequences must be identical element by element. Used
//     between the debug and optimized implementations, which are held to a
//     strict contract with each other.
//   - Subset containment: every line of the optimized output's sorted line
//     sequence must be matched by an equal line of the reference output's
//     sorted sequence, via a single two-pointer merge. The reference is a
//     superset oracle: lines it produces beyond the optimized output are
//     tolerated, the reverse is a failure.
//
// The policy is chosen by the shape of the requested variant set, see PolicyFor.
package verify
