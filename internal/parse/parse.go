// Package parse turns raw transcript bytes into canonical sessions.
//
// Encodings are recognized by an ordered list of strategies. Each strategy either claims the
// input and returns its message records, or declines. A new encoding is supported by
// appending a strategy, never by changing the ones before it.
package parse

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/techmad220/claude-code-mcp/internal/session"
)

type Shape string

const (
	ShapeDocument Shape = "document"
	ShapeArray    Shape = "array"
	ShapeLines    Shape = "lines"
)

// Options controls the parser and the skim index budget.
type Options struct {
	Fields       FieldPaths `yaml:"fields"`
	IndexBytes   int        `yaml:"index_bytes"`
	PreviewChars int        `yaml:"preview_chars"`
}

func DefaultOptions() Options {
	return Options{
		Fields:       DefaultFieldPaths(),
		IndexBytes:   16 * 1024,
		PreviewChars: 200,
	}
}

type Parser struct {
	fields       FieldPaths
	indexBytes   int
	previewChars int
}

func New(opts Options) *Parser {
	d := DefaultOptions()
	if opts.IndexBytes <= 0 {
		opts.IndexBytes = d.IndexBytes
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = d.PreviewChars
	}
	return &Parser{
		fields:       opts.Fields.withDefaults(),
		indexBytes:   opts.IndexBytes,
		previewChars: opts.PreviewChars,
	}
}

// input is the raw file plus what every strategy needs to know about it.
type input struct {
	data  []byte
	valid bool // the whole input is one JSON value
	root  gjson.Result
}

// decoded is the tagged outcome of a strategy that claimed the input.
type decoded struct {
	shape   Shape
	records []gjson.Result // message objects, file order
	objects []gjson.Result // every parsed object, for session-level fields
	root    gjson.Result
}

type strategy func(p *Parser, in *input) (decoded, bool)

var strategies = []strategy{
	(*Parser).decodeDocument,
	(*Parser).decodeArray,
	(*Parser).decodeLines,
}

func (p *Parser) decode(data []byte, path string) (decoded, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return decoded{}, &Error{Kind: Empty, Path: path}
	}
	in := &input{data: data, valid: gjson.ValidBytes(data)}
	if in.valid {
		in.root = gjson.ParseBytes(data)
	}
	for _, try := range strategies {
		if d, ok := try(p, in); ok {
			return d, nil
		}
	}
	if in.valid || anyLineValid(data) {
		return decoded{}, &Error{Kind: UnrecognizedShape, Path: path}
	}
	return decoded{}, &Error{Kind: NotJSON, Path: path}
}

func (p *Parser) decodeDocument(in *input) (decoded, bool) {
	if !in.valid || !in.root.IsObject() {
		return decoded{}, false
	}
	for _, key := range p.fields.Collections {
		coll := in.root.Get(key)
		if !coll.IsArray() {
			continue
		}
		records := p.messageRecords(coll.Array())
		if len(records) == 0 {
			continue
		}
		return decoded{shape: ShapeDocument, records: records, objects: []gjson.Result{in.root}, root: in.root}, true
	}
	return decoded{}, false
}

func (p *Parser) decodeArray(in *input) (decoded, bool) {
	if !in.valid || !in.root.IsArray() {
		return decoded{}, false
	}
	records := p.messageRecords(in.root.Array())
	if len(records) == 0 {
		return decoded{}, false
	}
	return decoded{shape: ShapeArray, records: records, objects: records}, true
}

func (p *Parser) decodeLines(in *input) (decoded, bool) {
	var d decoded
	for _, line := range bytes.Split(in.data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}
		obj := gjson.ParseBytes(line)
		if !obj.IsObject() {
			continue
		}
		d.objects = append(d.objects, obj)
		if p.looksLikeMessage(obj) {
			d.records = append(d.records, obj)
		}
	}
	// Summary-only transcripts and settings files carry objects but no conversation.
	if len(d.records) == 0 {
		return decoded{}, false
	}
	d.shape = ShapeLines
	return d, true
}

func anyLineValid(data []byte) bool {
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 && gjson.ValidBytes(line) {
			return true
		}
	}
	return false
}

func (p *Parser) messageRecords(entries []gjson.Result) []gjson.Result {
	var out []gjson.Result
	for _, e := range entries {
		if p.looksLikeMessage(e) {
			out = append(out, e)
		}
	}
	return out
}

// looksLikeMessage reports whether any content path resolves to something textual.
func (p *Parser) looksLikeMessage(obj gjson.Result) bool {
	if !obj.IsObject() {
		return false
	}
	for _, path := range p.fields.Content {
		if contentLike(obj.Get(path)) {
			return true
		}
	}
	return false
}

func contentLike(v gjson.Result) bool {
	switch {
	case v.Type == gjson.String:
		return true
	case v.IsArray():
		return true
	case v.IsObject():
		return v.Get("text").Type == gjson.String
	default:
		return false
	}
}

// Parse decodes data into a full session. It touches no shared state.
func (p *Parser) Parse(data []byte, path string) (session.Session, error) {
	d, err := p.decode(data, path)
	if err != nil {
		return session.Session{}, err
	}
	s := session.Session{
		ID:          session.IDFromPath(path),
		ProjectPath: p.project(d, path),
		Format:      string(d.shape),
		FilePath:    path,
		Messages:    make([]session.Message, 0, len(d.records)),
	}
	for _, rec := range d.records {
		m := session.Message{
			Role:      p.role(rec),
			Content:   p.content(rec),
			Timestamp: p.timestamp(rec, p.fields.Timestamp),
		}
		s.Messages = append(s.Messages, m)
		s.FirstSeen, s.LastSeen = widen(s.FirstSeen, s.LastSeen, m.Timestamp)
	}
	s.FirstSeen, s.LastSeen = p.sessionBounds(d, s.FirstSeen, s.LastSeen)
	return s, nil
}

// Skim builds the summary and a bounded index text without materializing messages.
// Content is only extracted until the index budget is spent and the preview is found;
// the document is marked Truncated when any content was left out.
func (p *Parser) Skim(data []byte, path string) (session.Document, error) {
	d, err := p.decode(data, path)
	if err != nil {
		return session.Document{}, err
	}
	sum := session.Summary{
		ID:           session.IDFromPath(path),
		ProjectPath:  p.project(d, path),
		MessageCount: len(d.records),
		Preview:      session.NoPreview,
		FilePath:     path,
	}
	var text strings.Builder
	havePreview, truncated := false, false
	for _, rec := range d.records {
		sum.FirstSeen, sum.LastSeen = widen(sum.FirstSeen, sum.LastSeen, p.timestamp(rec, p.fields.Timestamp))

		budgetLeft := text.Len() < p.indexBytes
		if havePreview && !budgetLeft {
			truncated = true
			continue
		}
		content := p.content(rec)
		if !havePreview && p.role(rec) == session.RoleHuman && strings.TrimSpace(content) != "" {
			sum.Preview = session.Preview(content, p.previewChars)
			havePreview = true
		}
		switch {
		case content == "":
		case !budgetLeft:
			truncated = true
		default:
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			part := clip(content, p.indexBytes-text.Len())
			truncated = truncated || len(part) < len(content)
			text.WriteString(part)
		}
	}
	sum.FirstSeen, sum.LastSeen = p.sessionBounds(d, sum.FirstSeen, sum.LastSeen)
	doc := session.NewDocument(sum, text.String())
	doc.Truncated = truncated
	return doc, nil
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// role returns the first candidate that names a known role.
func (p *Parser) role(rec gjson.Result) session.Role {
	for _, path := range p.fields.Role {
		v := rec.Get(path)
		if v.Type != gjson.String {
			continue
		}
		if r := session.NormalizeRole(v.Str); r != session.RoleUnknown {
			return r
		}
	}
	return session.RoleUnknown
}

// content canonicalizes the first present content path: strings as-is, block arrays
// joined with "\n" from each block's text.
func (p *Parser) content(rec gjson.Result) string {
	for _, path := range p.fields.Content {
		v := rec.Get(path)
		switch {
		case v.Type == gjson.String:
			return v.Str
		case v.IsArray():
			return joinBlocks(v)
		case v.IsObject():
			if t := v.Get("text"); t.Type == gjson.String {
				return t.Str
			}
		}
	}
	return ""
}

func joinBlocks(arr gjson.Result) string {
	var parts []string
	arr.ForEach(func(_, block gjson.Result) bool {
		switch {
		case block.Type == gjson.String:
			if block.Str != "" {
				parts = append(parts, block.Str)
			}
		case block.IsObject():
			if t := block.Get("text"); t.Type == gjson.String && t.Str != "" {
				parts = append(parts, t.Str)
			}
		}
		return true
	})
	return strings.Join(parts, "\n")
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (p *Parser) timestamp(rec gjson.Result, paths []string) time.Time {
	for _, path := range paths {
		if t, ok := parseTime(rec.Get(path)); ok {
			return t
		}
	}
	return time.Time{}
}

func parseTime(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(f)
		}
	case gjson.Number:
		return epoch(v.Num)
	}
	return time.Time{}, false
}

// epoch accepts seconds or milliseconds since 1970.
func epoch(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}
	if f > 1e12 {
		ms := int64(f)
		return time.UnixMilli(ms).UTC(), true
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), true
}

func widen(first, last, t time.Time) (time.Time, time.Time) {
	if t.IsZero() {
		return first, last
	}
	if first.IsZero() || t.Before(first) {
		first = t
	}
	if last.IsZero() || t.After(last) {
		last = t
	}
	return first, last
}

// sessionBounds falls back to document-level timestamps when no message carried one.
func (p *Parser) sessionBounds(d decoded, first, last time.Time) (time.Time, time.Time) {
	if !d.root.Exists() {
		return first, last
	}
	if first.IsZero() {
		first = p.timestamp(d.root, p.fields.SessionStart)
	}
	if last.IsZero() {
		last = p.timestamp(d.root, p.fields.SessionEnd)
	}
	if last.IsZero() {
		last = first
	}
	return first, last
}

func (p *Parser) project(d decoded, path string) string {
	for _, obj := range d.objects {
		for _, field := range p.fields.Project {
			if v := obj.Get(field); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	return session.ProjectFromPath(path)
}
