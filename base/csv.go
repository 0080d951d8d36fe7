// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"bufio"
	"strings"

	"github.com/juju/errors"
)

// ValidateId validates user/item id. Id cannot be empty or contain `/`.
func ValidateId(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.NotValidf("empty id")
	} else if strings.Contains(text, "/") {
		return errors.NotValidf("id %q containing `/`", text)
	}
	return nil
}

// recordParser splits quoted csv records which may span multiple lines.
type recordParser struct {
	sep    rune
	fields []string
	field  strings.Builder
	quoted bool
}

// feed consumes one physical line and reports whether a record is complete.
func (p *recordParser) feed(line string) bool {
	if p.quoted {
		p.field.WriteString("\r\n")
	}
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; {
		case c == '"' && p.quoted && i+1 < len(runes) && runes[i+1] == '"':
			p.field.WriteRune('"')
			i++
		case c == '"':
			p.quoted = !p.quoted
		case c == p.sep && !p.quoted:
			p.fields = append(p.fields, p.field.String())
			p.field.Reset()
		default:
			p.field.WriteRune(c)
		}
	}
	if p.quoted {
		return false
	}
	p.fields = append(p.fields, p.field.String())
	p.field.Reset()
	return true
}

func (p *recordParser) take() []string {
	fields := p.fields
	p.fields = nil
	return fields
}

// ReadLines parses csv records from a scanner. The handler receives the
// record number and its fields, and stops the scan by returning false.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	if len([]rune(sep)) != 1 {
		return errors.NotValidf("separator %q", sep)
	}
	parser := &recordParser{sep: []rune(sep)[0]}
	for n := 0; sc.Scan(); {
		if !parser.feed(sc.Text()) {
			continue
		}
		if !handler(n, parser.take()) {
			return nil
		}
		n++
	}
	return errors.Trace(sc.Err())
}
