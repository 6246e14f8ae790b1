// Package pipeline runs the stages of a checkfort run in sequence.
//
// A run goes through these steps, each implemented as a Step that reads
// and extends a shared *State:
//
//	run_forcheck    run forchk on the collected files
//	parse_listfile  parse the listfile, using the parse cache
//	load_sources    read the analysed sources and resolve diagnostics
//	render_reports  write the HTML report and the optional extra report
//	save_history    record the run in the history database
//
// The render subcommand builds the same pipeline without run_forcheck.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows the render subcommand to reuse every step but the first
// 2. It provides consistent error handling and logging across steps
// 3. It checks for cancellation (Ctrl-C) between steps
package pipeline
