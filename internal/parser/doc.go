// Package parser reads FORCHECK listfiles into model.Report values.
//
// A listfile is a paginated text report. Every page starts with a header
// line beginning with "FORCHECK", optionally followed by a line naming the
// file the page is about and a blank line. Pages are separated by form feeds.
//
// The content runs through four stages, each ended by a fixed marker line:
//
//	file events      ... "global program analysis:"
//	global events    ... "program_units and procedures analysed:"
//	program units    ... "messages presented:"
//	summary          ... end of file
//
// Design decision: The parser works on a sliding window of the current line
// and the two lines before it, because FORCHECK prints the location and the
// culprit of a message on the lines preceding the message itself. Keeping
// only three lines means memory use does not grow with the listfile size.
package parser
