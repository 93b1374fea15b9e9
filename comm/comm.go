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

// Package comm connects the worker processes of a coupled run. It
// provides blocking point-to-point messages and the collectives built
// from them. Every worker must call the collectives in the same order.
package comm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// LeaderRank is the rank of the worker that coordinates collectives.
const LeaderRank = 0

// Communicator connects one worker to its peers. Send returns without
// waiting for the matching Recv. Recv blocks until a message from src
// with the given tag arrives; messages with the same source and tag are
// received in the order they were sent. Tags used by callers must be
// non-negative.
type Communicator interface {
	Rank() int
	Size() int
	Hostname() string
	Send(dst, tag int, v interface{}) error
	Recv(src, tag int, v interface{}) error

	// Abort wakes every pending and future Recv on every worker with err.
	Abort(err error)
}

// Role selects which side of a collective protocol a worker executes.
type Role int

const (
	// Leader collects from and broadcasts to the followers.
	Leader Role = iota
	// Follower sends to and receives from the leader only.
	Follower
)

func (r Role) String() string {
	if r == Leader {
		return "leader"
	}
	return "follower"
}

// RoleOf returns the role of c in collectives.
func RoleOf(c Communicator) Role {
	if c.Rank() == LeaderRank {
		return Leader
	}
	return Follower
}

// Tags reserved for collectives.
const (
	tagGather = -1 - iota
	tagBcast
	tagTopology
)

// Bcast distributes the leader's v to every worker and returns it.
//
// Leader: sends v to each follower (tagBcast).
// Follower: receives one message from the leader (tagBcast).
func Bcast[T any](c Communicator, v T) (T, error) {
	switch RoleOf(c) {
	case Leader:
		for dst := 1; dst < c.Size(); dst++ {
			if err := c.Send(dst, tagBcast, v); err != nil {
				return v, fmt.Errorf("comm: broadcast to %d: %v", dst, err)
			}
		}
		return v, nil
	default:
		var o T
		if err := c.Recv(LeaderRank, tagBcast, &o); err != nil {
			return o, fmt.Errorf("comm: broadcast from leader: %v", err)
		}
		return o, nil
	}
}

// Gather collects v from every worker on the leader, in rank order.
// Followers receive nil.
//
// Leader: receives one message from each follower in rank order (tagGather).
// Follower: sends v to the leader (tagGather).
func Gather[T any](c Communicator, v T) ([]T, error) {
	switch RoleOf(c) {
	case Leader:
		o := make([]T, c.Size())
		o[LeaderRank] = v
		for src := 1; src < c.Size(); src++ {
			if err := c.Recv(src, tagGather, &o[src]); err != nil {
				return nil, fmt.Errorf("comm: gather from %d: %v", src, err)
			}
		}
		return o, nil
	default:
		if err := c.Send(LeaderRank, tagGather, v); err != nil {
			return nil, fmt.Errorf("comm: gather to leader: %v", err)
		}
		return nil, nil
	}
}

// Allgather returns v from every worker, in rank order, on every worker.
// It is a Gather followed by a Bcast of the result.
func Allgather[T any](c Communicator, v T) ([]T, error) {
	all, err := Gather(c, v)
	if err != nil {
		return nil, err
	}
	return Bcast(c, all)
}

// AllreduceSum returns the sum of x over all workers on every worker.
// The leader adds the values in rank order so every run with the same
// inputs gives the same result.
func AllreduceSum(c Communicator, x float64) (float64, error) {
	all, err := Gather(c, x)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range all {
		sum += v
	}
	return Bcast(c, sum)
}

// Barrier returns once every worker has called it.
func Barrier(c Communicator) error {
	_, err := Allgather(c, true)
	return err
}

// Agree returns a non-nil error on every worker if err is non-nil on
// any worker. It is a collective.
func Agree(c Communicator, err error) error {
	var msg string
	if err != nil {
		msg = err.Error()
	}
	msgs, gerr := Allgather(c, msg)
	if gerr != nil {
		return gerr
	}
	if err != nil {
		return err
	}
	for rank, m := range msgs {
		if m != "" {
			return fmt.Errorf("comm: worker %d failed: %s", rank, m)
		}
	}
	return nil
}

// LeaderDo runs f on the leader only and then shares its outcome so that
// every worker returns an error if f failed.
//
// Leader: runs f, then sends its error text to each follower (tagBcast).
// Follower: receives the leader's error text (tagBcast).
func LeaderDo(c Communicator, f func() error) error {
	var err error
	var msg string
	if RoleOf(c) == Leader {
		if err = f(); err != nil {
			msg = err.Error()
		}
	}
	msg, berr := Bcast(c, msg)
	if berr != nil {
		return berr
	}
	if err != nil {
		return err
	}
	if msg != "" {
		return fmt.Errorf("comm: leader failed: %s", msg)
	}
	return nil
}

func encode(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decode(b []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

type mailKey struct{ src, tag int }

// mailbox queues incoming messages for one worker.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues map[mailKey][][]byte
	err    error
}

func newMailbox() *mailbox {
	m := &mailbox{queues: make(map[mailKey][][]byte)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(src, tag int, payload []byte) {
	m.mu.Lock()
	k := mailKey{src, tag}
	m.queues[k] = append(m.queues[k], payload)
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (m *mailbox) take(src, tag int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mailKey{src, tag}
	for len(m.queues[k]) == 0 && m.err == nil {
		m.cond.Wait()
	}
	if m.err != nil {
		return nil, m.err
	}
	q := m.queues[k]
	p := q[0]
	if len(q) == 1 {
		delete(m.queues, k)
	} else {
		m.queues[k] = q[1:]
	}
	return p, nil
}

func (m *mailbox) abort(err error) {
	m.mu.Lock()
	if m.err == nil {
		m.err = err
	}
	m.mu.Unlock()
	m.cond.Broadcast()
}

func checkRank(r, size int) error {
	if r < 0 || r >= size {
		return fmt.Errorf("comm: rank %d out of range [0, %d)", r, size)
	}
	return nil
}
