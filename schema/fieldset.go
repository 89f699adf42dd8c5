package schema

import (
	"fmt"
	"strings"
	"text/scanner"
)

// ParseFieldSet parses the small selection-set grammar used by
// @key/@requires/@provides field-set strings, e.g. "id" or
// "id sku variation { id }".
func ParseFieldSet(src string) (*FieldSet, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents
	s.Error = func(*scanner.Scanner, string) {} // silence stderr noise; errors surface via parse failures below

	p := &fieldSetParser{s: &s}
	p.advance()
	fs, err := p.parseSet()
	if err != nil {
		return nil, fmt.Errorf("parsing field set %q: %w", src, err)
	}
	if p.tok != scanner.EOF {
		return nil, fmt.Errorf("parsing field set %q: unexpected trailing token %q", src, p.text)
	}
	return fs, nil
}

type fieldSetParser struct {
	s    *scanner.Scanner
	tok  rune
	text string
}

func (p *fieldSetParser) advance() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
}

func (p *fieldSetParser) parseSet() (*FieldSet, error) {
	fs := &FieldSet{}
	for p.tok == scanner.Ident {
		name := p.text
		p.advance()
		entry := FieldSetEntry{Name: name}
		if p.tok == '{' {
			p.advance()
			sub, err := p.parseSet()
			if err != nil {
				return nil, err
			}
			entry.Sub = sub
			if p.tok != '}' {
				return nil, fmt.Errorf("expected '}', got %q", p.text)
			}
			p.advance()
		}
		fs.Fields = append(fs.Fields, entry)
	}
	return fs, nil
}
