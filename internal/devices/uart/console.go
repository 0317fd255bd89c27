// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package uart

import (
	"os"

	"golang.org/x/term"
)

// Console wires a UART's RX FIFO to the controlling terminal's stdin,
// switching the terminal into raw mode so keystrokes reach the guest one
// byte at a time instead of being line-buffered and echoed by the host
// tty driver. Restore must be called before the process exits to leave
// the terminal usable.
type Console struct {
	fd       int
	oldState *term.State
}

// AttachConsole puts fd (normally os.Stdin's descriptor) into raw mode
// and starts feeding it into u's receive FIFO. If fd is not a terminal
// (e.g. input is redirected from a file), AttachConsole still attaches
// the reader but skips the raw-mode switch.
func AttachConsole(u *UART, fd int) (*Console, error) {
	c := &Console{fd: fd}
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return nil, err
		}
		c.oldState = old
	}
	u.AttachReader(os.NewFile(uintptr(fd), "stdin"))
	return c, nil
}

// Restore reverts the terminal to the state it was in before AttachConsole.
func (c *Console) Restore() error {
	if c.oldState == nil {
		return nil
	}
	return term.Restore(c.fd, c.oldState)
}
