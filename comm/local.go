/*
Copyright © 2018 the depcouple authors.
This file is part of depcouple.

depcouple is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

depcouple is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with depcouple.  If not, see <http://www.gnu.org/licenses/>.
*/

package comm

import "fmt"

// Local is a communicator for workers running as goroutines in one
// process. Messages are copied through gob, so workers never share
// memory.
type Local struct {
	rank     int
	hostname string
	boxes    []*mailbox
}

// NewLocal creates n connected communicators. hostnames optionally gives
// the host each worker reports; workers without one report "localhost".
func NewLocal(n int, hostnames ...string) []*Local {
	boxes := make([]*mailbox, n)
	for i := range boxes {
		boxes[i] = newMailbox()
	}
	o := make([]*Local, n)
	for i := range o {
		h := "localhost"
		if i < len(hostnames) {
			h = hostnames[i]
		}
		o[i] = &Local{rank: i, hostname: h, boxes: boxes}
	}
	return o
}

// Rank returns the rank of this worker.
func (l *Local) Rank() int { return l.rank }

// Size returns the number of workers.
func (l *Local) Size() int { return len(l.boxes) }

// Hostname returns the host this worker reports.
func (l *Local) Hostname() string { return l.hostname }

// Send queues a copy of v for worker dst.
func (l *Local) Send(dst, tag int, v interface{}) error {
	if err := checkRank(dst, len(l.boxes)); err != nil {
		return err
	}
	b, err := encode(v)
	if err != nil {
		return fmt.Errorf("comm: encoding message for %d: %v", dst, err)
	}
	l.boxes[dst].put(l.rank, tag, b)
	return nil
}

// Recv waits for a message from src and decodes it into v.
func (l *Local) Recv(src, tag int, v interface{}) error {
	if err := checkRank(src, len(l.boxes)); err != nil {
		return err
	}
	b, err := l.boxes[l.rank].take(src, tag)
	if err != nil {
		return err
	}
	return decode(b, v)
}

// Abort fails every pending and future Recv of every worker.
func (l *Local) Abort(err error) {
	for _, b := range l.boxes {
		b.abort(err)
	}
}
