// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

const (
	fmtColor     byte = 0x03 // color escape, followed by fg[,bg] codes.
	fmtBold      byte = 0x02
	fmtItalic    byte = 0x1D
	fmtUnderline byte = 0x1F
	fmtReset     byte = 0x0F
)

// substColors is the fixed palette accepted inside @{fg[,bg]} tokens,
// mapped to mIRC color codes.
var substColors = map[string]int{
	"white":       0,
	"black":       1,
	"blue":        2,
	"green":       3,
	"red":         4,
	"brown":       5,
	"purple":      6,
	"orange":      7,
	"yellow":      8,
	"light-green": 9,
	"teal":        10,
	"cyan":        11,
	"light-blue":  12,
	"pink":        13,
	"grey":        14,
	"light-grey":  15,
}

// SubstContext carries the inputs of a single template expansion. The zero
// value expands keyword tokens to the empty string and passes everything
// else through verbatim.
type SubstContext struct {
	// Time is the value #{date:FMT} tokens format. Zero means time.Now().
	Time time.Time
	// Keywords backs #{name} tokens. Missing names expand to "".
	Keywords map[string]string
	// Env enables ${NAME} process-environment lookups.
	Env bool
	// Shell enables $(command) substitution. Off by default on purpose:
	// templates come from config files and control clients.
	Shell bool
	// Attrs enables @{color} and @b/@i/@u/@o IRC attribute escapes.
	Attrs bool
}

func (ctx *SubstContext) now() time.Time {
	if ctx.Time.IsZero() {
		return time.Now()
	}

	return ctx.Time
}

// Subst expands the template tokens of in:
//
//	#{name}      keyword lookup, empty when missing
//	#{date:FMT}  strftime-style formatting of the context time
//	${NAME}      environment variable (when enabled)
//	$(command)   shell substitution (when enabled)
//	@{fg[,bg]}   IRC color escape (when attrs enabled)
//	@b @i @u @o  bold/italic/underline/reset (when attrs enabled)
//	## $$ @@     literal #, $, @
//
// Anything unrecognized passes through verbatim.
func Subst(in string, ctx *SubstContext) string {
	if ctx == nil {
		ctx = &SubstContext{}
	}

	out := new(bytes.Buffer)

	for i := 0; i < len(in); i++ {
		c := in[i]

		if c != '#' && c != '$' && c != '@' {
			out.WriteByte(c)
			continue
		}

		// Doubled introducer is the literal character.
		if i+1 < len(in) && in[i+1] == c {
			out.WriteByte(c)
			i++
			continue
		}

		var consumed int

		switch c {
		case '#':
			consumed = substKeyword(out, in[i:], ctx)
		case '$':
			consumed = substDollar(out, in[i:], ctx)
		case '@':
			consumed = substAttr(out, in[i:], ctx)
		}

		if consumed == 0 {
			// Not a token; verbatim.
			out.WriteByte(c)
			continue
		}

		i += consumed - 1
	}

	return out.String()
}

// substKeyword handles #{name} and #{date:FMT}. Returns the number of
// input bytes consumed, 0 if the input is not a token.
func substKeyword(out *bytes.Buffer, in string, ctx *SubstContext) int {
	if len(in) < 3 || in[1] != '{' {
		return 0
	}

	end := strings.IndexByte(in, '}')
	if end < 0 {
		return 0
	}

	name := in[2:end]

	if fmtstr, ok := strings.CutPrefix(name, "date:"); ok {
		if formatted, err := strftime.Format(fmtstr, ctx.now()); err == nil {
			out.WriteString(formatted)
		}

		return end + 1
	}

	out.WriteString(ctx.Keywords[name])

	return end + 1
}

// substDollar handles ${NAME} and $(command).
func substDollar(out *bytes.Buffer, in string, ctx *SubstContext) int {
	if len(in) < 3 {
		return 0
	}

	switch in[1] {
	case '{':
		end := strings.IndexByte(in, '}')
		if end < 0 {
			return 0
		}

		if ctx.Env {
			out.WriteString(os.Getenv(in[2:end]))
		}

		return end + 1
	case '(':
		end := strings.IndexByte(in, ')')
		if end < 0 {
			return 0
		}

		if ctx.Shell {
			if stdout, err := exec.Command("sh", "-c", in[2:end]).Output(); err == nil {
				out.WriteString(strings.TrimRight(string(stdout), "\r\n"))
			}
		}

		return end + 1
	}

	return 0
}

// substAttr handles @{fg[,bg]} color tokens and the @b/@i/@u/@o attribute
// shorthands.
func substAttr(out *bytes.Buffer, in string, ctx *SubstContext) int {
	if len(in) < 2 {
		return 0
	}

	if in[1] != '{' {
		if !ctx.Attrs {
			return 0
		}

		switch in[1] {
		case 'b':
			out.WriteByte(fmtBold)
		case 'i':
			out.WriteByte(fmtItalic)
		case 'u':
			out.WriteByte(fmtUnderline)
		case 'o':
			out.WriteByte(fmtReset)
		default:
			return 0
		}

		return 2
	}

	end := strings.IndexByte(in, '}')
	if end < 0 {
		return 0
	}

	if !ctx.Attrs {
		return 0
	}

	fg, bg, found := strings.Cut(in[2:end], ",")

	fgCode, ok := substColors[fg]
	if !ok {
		return 0
	}

	if found {
		bgCode, bgok := substColors[bg]
		if !bgok {
			return 0
		}

		fmt.Fprintf(out, "%c%02d,%02d", fmtColor, fgCode, bgCode)
	} else {
		fmt.Fprintf(out, "%c%02d", fmtColor, fgCode)
	}

	return end + 1
}
