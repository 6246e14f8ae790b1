package parser

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/checkfort/internal/model"
)

// Precompiled patterns for the fixed-format listfile lines.
var (
	reEvent   = regexp.MustCompile(`^\*\*\[\s*(\d+ [IEWO])\] (.*)`)
	reFile    = regexp.MustCompile(`^\(file: ([^,]+), line:\s+(\d+)\)`)
	reSummary = regexp.MustCompile(`^(\d+)x\[\s*(\d+ [IEWO])\] (.+)`)
	reNumOf   = regexp.MustCompile(`^number of ([^:]*?):\s+(\d+)`)
)

const (
	headerPrefix = "FORCHECK"
	eventPrefix  = "**["
	formFeed     = "\f"

	// maxLineSize bounds a single listfile line. FORCHECK is run with
	// "-pwid 255" so real lines are far shorter.
	maxLineSize = 1024 * 1024
)

type stage int

const (
	stageFileEvents stage = iota
	stageGlobalEvents
	stageProgramUnits
	stageSummary
)

var stageNames = [...]string{
	stageFileEvents:   "file events",
	stageGlobalEvents: "global events",
	stageProgramUnits: "program units",
	stageSummary:      "forcheck summary",
}

// stageEndMarkers holds the stripped line that ends each stage.
// The summary runs until the end of the listfile.
var stageEndMarkers = [...]string{
	stageFileEvents:   "global program analysis:",
	stageGlobalEvents: "program_units and procedures analysed:",
	stageProgramUnits: "messages presented:",
	stageSummary:      "",
}

// Parser parses FORCHECK listfiles.
type Parser struct {
	ignore map[int]struct{}
	legacy bool
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithIgnoreCodes drops messages whose numeric code is in codes.
// The filter applies to file events, global events and the summary check.
func WithIgnoreCodes(codes []int) Option {
	return func(p *Parser) {
		for _, c := range codes {
			p.ignore[c] = struct{}{}
		}
	}
}

// WithLegacyMode selects the listfile layout of FORCHECK releases before
// 14.1, which print the culprit and the file location in swapped order.
func WithLegacyMode(legacy bool) Option {
	return func(p *Parser) {
		p.legacy = legacy
	}
}

// WithLogger sets the logger used for progress and parse warnings.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// New creates a Parser with the given options.
func New(opts ...Option) *Parser {
	p := &Parser{
		ignore: make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Parse is a shortcut for New(opts...).Parse(r).
func Parse(r io.Reader, opts ...Option) (*model.Report, error) {
	return New(opts...).Parse(r)
}

// IgnoredCodes returns the ignored message numbers in ascending order.
func (p *Parser) IgnoredCodes() []int {
	codes := make([]int, 0, len(p.ignore))
	for c := range p.ignore {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// Parse reads a listfile and returns the report it describes.
//
// An empty stream yields an empty report. A stream that does not start with
// a FORCHECK page header, or whose page headers are malformed, yields a
// *ParseError. Message lines that cannot be interpreted are skipped and
// recorded in Report.Warnings.
func (p *Parser) Parse(r io.Reader) (*model.Report, error) {
	report := model.NewReport()
	report.IgnoredCodes = p.IgnoredCodes()

	if len(report.IgnoredCodes) > 0 {
		p.logger.Info("ignoring forcheck events", "codes", report.IgnoredCodes)
	}

	lr := newLineReader(r)
	s := &state{
		parser:   p,
		report:   report,
		counts:   make(map[model.EventCode]int),
		messages: make(map[model.EventCode]string),
	}

	// Skip leading blank lines; a stream made only of them is empty.
	first, ok := "", false
	for lr.next() {
		if strings.TrimSpace(lr.text()) != "" {
			first, ok = lr.text(), true
			break
		}
	}
	if !ok {
		if err := lr.err(); err != nil {
			return nil, fmt.Errorf("failed to read listfile: %w", err)
		}
		return report, nil
	}

	if err := s.readPageHeader(lr, strings.TrimPrefix(first, formFeed)); err != nil {
		return nil, err
	}
	p.logger.Info("parsing listfile stage", "stage", stageNames[s.stage])

	for lr.next() {
		raw := lr.text()
		if strings.HasPrefix(raw, formFeed) {
			if err := s.readPageHeader(lr, strings.TrimPrefix(raw, formFeed)); err != nil {
				return nil, err
			}
			continue
		}

		s.shift(strings.TrimSpace(raw), lr.lineNo)
		if marker := stageEndMarkers[s.stage]; marker != "" && s.cur == marker {
			s.stage++
			p.logger.Info("parsing listfile stage", "stage", stageNames[s.stage])
			continue
		}
		s.slurp()
	}
	if err := lr.err(); err != nil {
		return nil, fmt.Errorf("failed to read listfile: %w", err)
	}

	if len(report.SummaryMismatches) > 0 || s.messageConflict {
		p.logger.Debug("parsed results do not match the forcheck summary; keep the listfile for investigation",
			"mismatches", len(report.SummaryMismatches),
		)
	} else {
		p.logger.Info("listfile parsed", "diagnostics", report.Len(), "warnings", len(report.Warnings))
	}
	return report, nil
}

// state is the mutable parsing state of one Parse call.
type state struct {
	parser *Parser
	report *model.Report
	stage  stage

	// target is the file named by the current page header, if any.
	target string

	// cur, prev1 and prev2 are the current line and the two lines before
	// it, all stripped. curLine is the listfile line number of cur.
	cur, prev1, prev2 string
	curLine           int

	counts          map[model.EventCode]int
	messages        map[model.EventCode]string
	messageConflict bool
}

func (s *state) shift(line string, lineNo int) {
	s.prev2, s.prev1, s.cur = s.prev1, s.cur, line
	s.curLine = lineNo
}

// readPageHeader consumes a page header. header is the header line with any
// leading form feed removed; when the form feed stood on a line of its own,
// header is blank and the header is read from the next line.
func (s *state) readPageHeader(lr *lineReader, header string) error {
	if strings.TrimSpace(header) == "" {
		if !lr.next() {
			s.target = ""
			return nil
		}
		header = lr.text()
	}
	if !strings.HasPrefix(header, headerPrefix) {
		return &ParseError{Line: lr.lineNo, Text: header, Reason: "expected page header starting with " + headerPrefix}
	}

	if !lr.next() {
		s.target = ""
		return nil
	}
	line := lr.text()
	if strings.TrimSpace(line) == "" {
		s.target = ""
		return nil
	}

	fields := strings.Fields(line)
	s.target = fields[len(fields)-1]

	if !lr.next() {
		return nil
	}
	if blank := lr.text(); strings.TrimSpace(blank) != "" {
		return &ParseError{Line: lr.lineNo, Text: blank, Reason: "expected blank line after page target"}
	}
	return nil
}

func (s *state) slurp() {
	switch s.stage {
	case stageFileEvents:
		s.fileEvent()
	case stageGlobalEvents:
		s.globalEvent()
	case stageSummary:
		s.summary()
	case stageProgramUnits:
	}
}

// event splits an event line into code and message. It records a warning
// and returns ok=false for lines that look like events but do not parse.
func (s *state) event() (model.EventCode, string, bool) {
	m := reEvent.FindStringSubmatch(s.cur)
	if m == nil {
		s.warn("unknown message format")
		return model.EventCode{}, "", false
	}
	code, err := model.ParseEventCode(m[1])
	if err != nil {
		s.warn(err.Error())
		return model.EventCode{}, "", false
	}
	return code, m[2], true
}

// fileEvent handles a message from the per-file analysis.
//
// FORCHECK prints the culprit statement on the line before the message and
// the "(file: F, line: N)" location two lines before it. When the culprit is
// missing the location moves up by one line. When neither line carries a
// location the page target is used with an unknown line.
func (s *state) fileEvent() {
	if !strings.HasPrefix(s.cur, eventPrefix) {
		return
	}

	culprit, fileInfo := s.prev1, s.prev2
	if s.parser.legacy {
		culprit, fileInfo = s.prev2, s.prev1
	}

	code, message, ok := s.event()
	if !ok {
		return
	}

	file, line := s.target, 0
	if f, n, found := matchFile(fileInfo); found {
		file, line = f, n
	} else if f, n, found := matchFile(culprit); found {
		file, line = f, n
		culprit = ""
	}

	// Messages starting with "(" usually have no specific culprit.
	if strings.HasPrefix(message, "(") {
		culprit = ""
	}

	s.store(model.Diagnostic{
		Code:    code,
		Message: message,
		Culprit: culprit,
		File:    file,
		Line:    line,
		Scope:   model.ScopeFile,
	})
}

func matchFile(line string) (string, int, bool) {
	m := reFile.FindStringSubmatch(line)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(m[1]), n, true
}

// globalEvent handles a message from the global program analysis. The line
// before the message holds its details unless it is itself a message.
func (s *state) globalEvent() {
	if !strings.HasPrefix(s.cur, eventPrefix) {
		return
	}

	code, message, ok := s.event()
	if !ok {
		return
	}

	details := s.prev1
	if strings.HasPrefix(details, eventPrefix) {
		details = ""
	}

	s.store(model.Diagnostic{
		Code:    code,
		Message: message,
		Culprit: details,
		Scope:   model.ScopeGlobal,
	})
}

// summary handles the message summary and statistics at the end of the
// listfile.
func (s *state) summary() {
	if m := reSummary.FindStringSubmatch(s.cur); m != nil {
		count, err := strconv.Atoi(m[1])
		if err != nil {
			s.warn("invalid summary count")
			return
		}
		code, err := model.ParseEventCode(m[2])
		if err != nil {
			s.warn(err.Error())
			return
		}
		s.validate(code, count)
		return
	}

	if strings.HasPrefix(s.cur, "number of ") {
		m := reNumOf.FindStringSubmatch(s.cur)
		if m == nil {
			s.warn("unknown statistics format")
			return
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			s.warn("invalid statistics value")
			return
		}
		s.report.Sums[m[1]] = n
	}
}

func (s *state) validate(code model.EventCode, reported int) {
	if s.ignored(code) {
		return
	}
	parsed := s.counts[code]
	if parsed == reported {
		return
	}
	s.report.SummaryMismatches = append(s.report.SummaryMismatches, model.SummaryMismatch{
		Code:     code,
		Parsed:   parsed,
		Reported: reported,
	})
	s.parser.logger.Debug("parsed results do not match forcheck summary",
		"code", code.String(),
		"found", parsed,
		"summary", reported,
	)
}

func (s *state) ignored(code model.EventCode) bool {
	_, ok := s.parser.ignore[code.Number]
	return ok
}

func (s *state) store(d model.Diagnostic) {
	if s.ignored(d.Code) {
		return
	}

	s.counts[d.Code]++
	if prev, ok := s.messages[d.Code]; !ok {
		s.messages[d.Code] = d.Message
	} else if prev != d.Message {
		s.messageConflict = true
		s.parser.logger.Debug("different messages for the same event code",
			"code", d.Code.String(),
			"first", prev,
			"current", d.Message,
		)
	}

	s.report.Add(d)
}

func (s *state) warn(reason string) {
	w := model.ParseWarning{Line: s.curLine, Text: s.cur, Reason: reason}
	s.report.AddWarning(w)
	s.parser.logger.Warn("skipping unparseable listfile line",
		"line", w.Line,
		"text", w.Text,
		"reason", w.Reason,
	)
}

// lineReader wraps bufio.Scanner and tracks line numbers.
type lineReader struct {
	sc     *bufio.Scanner
	lineNo int
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineReader{sc: sc}
}

func (l *lineReader) next() bool {
	if !l.sc.Scan() {
		return false
	}
	l.lineNo++
	return true
}

func (l *lineReader) text() string {
	return strings.TrimRight(l.sc.Text(), "\r")
}

func (l *lineReader) err() error {
	return l.sc.Err()
}
