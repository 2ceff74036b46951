// Package xmltv provides streaming XMLTV parsing for electronic program guide data.
package xmltv

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Programme is a single <programme> element.
type Programme struct {
	Channel     string
	Start       time.Time
	Stop        time.Time
	Title       string
	SubTitle    string
	Description string
	Category    string
}

// Channel is a single <channel> element.
type Channel struct {
	ID          string
	DisplayName string
	Icon        string
}

// Parser provides streaming XMLTV parsing with callback-based processing.
//
// Programmes whose channel, start or stop attribute is missing or whose
// times cannot be parsed are reported through OnError and skipped. Any
// document-level error aborts Parse.
type Parser struct {
	// OnChannel is called for each channel definition. Channels are
	// skipped when nil.
	OnChannel func(channel *Channel) error

	// OnProgramme is called for each usable programme.
	OnProgramme func(programme *Programme) error

	// OnError is called for skipped elements.
	OnError func(err error)
}

// ErrIncompleteProgramme marks a programme without channel, start or stop.
var ErrIncompleteProgramme = errors.New("programme missing channel, start or stop")

var timeLayouts = []string{
	"20060102150405 -0700",
	"20060102150405 -07:00",
	"20060102150405-0700",
	"20060102150405",
	"200601021504 -0700",
	"200601021504",
}

// ParseTime parses an XMLTV timestamp such as "20240101120000 +0100".
// Timestamps without an offset are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %q", s)
}

// Parse reads an XMLTV document from r.
func (p *Parser) Parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charset.NewReaderLabel

	sawRoot := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading XML token: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true

		switch elem.Name.Local {
		case "channel":
			if p.OnChannel == nil {
				if err := decoder.Skip(); err != nil {
					return fmt.Errorf("skipping channel: %w", err)
				}
				continue
			}
			channel, err := parseChannel(decoder, elem)
			if err != nil {
				return fmt.Errorf("reading channel: %w", err)
			}
			if err := p.OnChannel(channel); err != nil {
				return fmt.Errorf("channel callback: %w", err)
			}

		case "programme":
			if p.OnProgramme == nil {
				if err := decoder.Skip(); err != nil {
					return fmt.Errorf("skipping programme: %w", err)
				}
				continue
			}
			prog, perr, err := parseProgramme(decoder, elem)
			if err != nil {
				return fmt.Errorf("reading programme: %w", err)
			}
			if perr != nil {
				p.handleError(perr)
				continue
			}
			if err := p.OnProgramme(prog); err != nil {
				return fmt.Errorf("programme callback: %w", err)
			}
		}
	}

	if !sawRoot {
		return fmt.Errorf("no XML elements found")
	}
	return nil
}

func parseChannel(decoder *xml.Decoder, start xml.StartElement) (*Channel, error) {
	channel := &Channel{ID: attrValue(start, "id")}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "display-name":
				var name string
				if err := decoder.DecodeElement(&name, &elem); err != nil {
					return nil, err
				}
				if channel.DisplayName == "" {
					channel.DisplayName = strings.TrimSpace(name)
				}
			case "icon":
				channel.Icon = attrValue(elem, "src")
				if err := decoder.Skip(); err != nil {
					return nil, err
				}
			default:
				if err := decoder.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			return channel, nil
		}
	}
}

// parseProgramme consumes a programme element. The second return value
// reports an element-level problem, the third a document-level one.
func parseProgramme(decoder *xml.Decoder, start xml.StartElement) (*Programme, error, error) {
	prog := &Programme{Channel: strings.TrimSpace(attrValue(start, "channel"))}
	startRaw := attrValue(start, "start")
	stopRaw := attrValue(start, "stop")

	for done := false; !done; {
		token, err := decoder.Token()
		if err != nil {
			return nil, nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			var target *string
			switch elem.Name.Local {
			case "title":
				target = &prog.Title
			case "sub-title":
				target = &prog.SubTitle
			case "desc":
				target = &prog.Description
			case "category":
				target = &prog.Category
			}
			if target == nil {
				if err := decoder.Skip(); err != nil {
					return nil, nil, err
				}
				continue
			}
			var text string
			if err := decoder.DecodeElement(&text, &elem); err != nil {
				return nil, nil, err
			}
			if *target == "" {
				*target = strings.TrimSpace(text)
			}
		case xml.EndElement:
			done = true
		}
	}

	if prog.Channel == "" || strings.TrimSpace(startRaw) == "" || strings.TrimSpace(stopRaw) == "" {
		return nil, ErrIncompleteProgramme, nil
	}

	var err error
	if prog.Start, err = ParseTime(startRaw); err != nil {
		return nil, fmt.Errorf("programme on %q: start: %w", prog.Channel, err), nil
	}
	if prog.Stop, err = ParseTime(stopRaw); err != nil {
		return nil, fmt.Errorf("programme on %q: stop: %w", prog.Channel, err), nil
	}

	return prog, nil, nil
}

func attrValue(elem xml.StartElement, name string) string {
	for _, attr := range elem.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

func (p *Parser) handleError(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}
