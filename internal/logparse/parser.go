package logparse

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/rotisserie/eris"
)

const defaultMaxLineKB = 1024

// Parser reads validator log streams into batches. A Parser may be shared by
// concurrent callers; every call gets its own Extractor.
type Parser struct {
	maxLine int
	bufPool sync.Pool
}

// new log parser; maxLineKB bounds the longest accepted line
func NewParser(maxLineKB int) *Parser {
	if maxLineKB <= 0 {
		maxLineKB = defaultMaxLineKB
	}
	p := &Parser{
		maxLine: maxLineKB * 1024,
	}
	// the scanner never grows past max(maxLine, cap(buf))
	bufSize := min(64*1024, p.maxLine)
	p.bufPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, bufSize)
			return &buf
		},
	}
	return p
}

// parses a log file into a batch
func (p *Parser) ParseFile(filePath string) (*Batch, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, eris.Wrapf(err, "open log file %s", filePath)
	}
	defer file.Close()

	return p.ParseReader(filePath, file)
}

// ParseReader parses one stream. source names the stream in errors and in the
// returned batch. A malformed line aborts the stream with a *MalformedLineError
// and no batch.
func (p *Parser) ParseReader(source string, r io.Reader) (*Batch, error) {
	bufp := p.bufPool.Get().(*[]byte)
	defer p.bufPool.Put(bufp)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(*bufp, p.maxLine)

	x := NewExtractor(source)
	batch := &Batch{Source: source}

	for scanner.Scan() {
		if err := x.Extract(scanner.Text(), batch); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read %s", source)
	}

	return batch, nil
}
