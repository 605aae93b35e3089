// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

// canSplit reports whether over-length lines of the given IRC command may
// be split across multiple lines. Only text-carrying commands qualify;
// everything else gets truncated by the encoder.
func canSplit(cmd string) bool {
	return cmd == PRIVMSG || cmd == NOTICE
}

// payloadBudget returns how many bytes of trailing text fit on one line of
// the given command and target, within the 510-byte line limit (CR+LF
// excluded).
func payloadBudget(cmd, target string) int {
	// "<cmd> <target> :<text>"
	budget := maxLength - (len(cmd) + 1 + len(target) + 2)
	if budget < 1 {
		budget = 1
	}

	return budget
}

// splitPayload splits text into chunks of at most budget bytes. Chunks
// concatenate back to the original text; splits prefer the last space
// within the budget, keeping the space at the end of the leading chunk.
func splitPayload(text string, budget int) (out []string) {
	if budget < 1 {
		budget = 1
	}

	for len(text) > budget {
		cut := budget

		for i := budget - 1; i > 0; i-- {
			if text[i] == eventSpace {
				cut = i + 1
				break
			}
		}

		out = append(out, text[:cut])
		text = text[cut:]
	}

	return append(out, text)
}
