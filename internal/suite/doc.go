// Package suite holds the declarative test tables.
//
// A suite names the input and output directories, the upstream stage chain,
// the implementations of the compared stage, and the table of inputs with
// the variants each one runs. Suites are read from YAML or CUE files and
// validated once, up front: every command template is parsed, every label
// and input name is checked, and every input's variant set must be accepted
// by a comparison policy. Nothing is invoked for a suite that fails to load.
//
// Two suites are built in and embedded in the binary:
//
//   - flatten: simplify and reprint each game description, run the
//     flattener variants listed for that game, and compare them.
//   - recompress: thread each named input through the full
//     simplify/reprint/flatten/reprint/recompress chain.
//
// # File format
//
//	name: flattener
//	kind: flatten
//	input_dir: test/flattener_inputs
//	output_dir: test/flattener_outputs
//	extension: .kif
//	build: [make, -C, rule_engine]
//	timeout: 40m
//	vars:
//	  classpath: /opt/ggp-base/bin
//	stages:
//	  - label: simplified
//	    command: [python, simplify_by_sancho.py, "{input}", "{output}"]
//	flatten:
//	  label: flattened
//	  canonicalize: [./rule_engine/reprinter, "{input}", "{output}"]
//	  variants:
//	    debug: [./rule_engine/flatten, "{input}", "{output}"]
//	    optimized: [./rule_engine/opt_flatten, "{input}", "{output}"]
//	inputs:
//	  - name: ticTac
//	    variants: [debug, optimized]
package suite
