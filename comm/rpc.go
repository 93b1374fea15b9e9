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

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Empty is used for passing content-less messages.
type Empty struct{}

// Envelope is one message between workers. It is exported to meet RPC
// requirements.
type Envelope struct {
	Src, Tag int
	Payload  []byte
}

// JoinRequest announces a follower to the leader.
type JoinRequest struct {
	Rank     int
	Addr     string
	Hostname string
}

// AddressBook lists the RPC address of every worker, indexed by rank.
type AddressBook struct {
	Addrs []string
}

// Mailbox receives messages for one worker. It should not be interacted
// with directly, but it is exported to meet RPC requirements.
type Mailbox struct {
	box *mailbox
}

// Deliver queues a message. It meets the requirements for use with
// rpc.Call.
func (m *Mailbox) Deliver(e *Envelope, _ *Empty) error {
	m.box.put(e.Src, e.Tag, e.Payload)
	return nil
}

// Abort fails every pending and future receive on this worker.
// It meets the requirements for use with rpc.Call.
func (m *Mailbox) Abort(msg *string, _ *Empty) error {
	m.box.abort(errors.New(*msg))
	return nil
}

// Registry collects follower addresses on the leader. It should not be
// interacted with directly, but it is exported to meet RPC requirements.
type Registry struct {
	mu     sync.Mutex
	addrs  []string
	joined int
	done   chan struct{}
}

// Join records a follower and blocks until every follower has joined,
// then returns the full address book. It meets the requirements for use
// with rpc.Call.
func (r *Registry) Join(req *JoinRequest, book *AddressBook) error {
	r.mu.Lock()
	if err := checkRank(req.Rank, len(r.addrs)); err != nil || req.Rank == LeaderRank {
		r.mu.Unlock()
		return fmt.Errorf("comm: invalid follower rank %d", req.Rank)
	}
	if r.addrs[req.Rank] != "" {
		r.mu.Unlock()
		return fmt.Errorf("comm: rank %d joined twice", req.Rank)
	}
	r.addrs[req.Rank] = req.Addr
	r.joined++
	logrus.WithFields(logrus.Fields{"rank": req.Rank, "host": req.Hostname, "addr": req.Addr}).Info("comm: worker joined")
	if r.joined == len(r.addrs)-1 {
		close(r.done)
	}
	r.mu.Unlock()

	<-r.done
	r.mu.Lock()
	book.Addrs = append([]string{}, r.addrs...)
	r.mu.Unlock()
	return nil
}

// RPC is a communicator for workers in separate processes, connected by
// net/rpc over HTTP.
type RPC struct {
	rank     int
	hostname string
	box      *mailbox
	addrs    []string
	listener net.Listener

	mu      sync.Mutex
	clients map[int]*rpc.Client
}

// Serve starts the leader, listening on addr, and waits until size-1
// followers have joined.
func Serve(size int, addr string) (*RPC, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := newRPC(LeaderRank, l)
	reg := &Registry{addrs: make([]string, size), done: make(chan struct{})}
	reg.addrs[LeaderRank] = advertise(l.Addr().String())
	if size == 1 {
		close(reg.done)
	}
	srv := rpc.NewServer()
	if err := srv.Register(&Mailbox{box: c.box}); err != nil {
		return nil, err
	}
	if err := srv.Register(reg); err != nil {
		return nil, err
	}
	go http.Serve(l, srv)
	logrus.WithField("addr", reg.addrs[LeaderRank]).Info("comm: leader started")
	<-reg.done
	c.addrs = reg.addrs
	return c, nil
}

// Join starts follower rank, listening on listenAddr, and registers it
// with the leader at leaderAddr. Dialing the leader is retried with
// exponential backoff while the leader starts up.
func Join(rank int, leaderAddr, listenAddr string) (*RPC, error) {
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	c := newRPC(rank, l)
	srv := rpc.NewServer()
	if err := srv.Register(&Mailbox{box: c.box}); err != nil {
		return nil, err
	}
	go http.Serve(l, srv)

	var client *rpc.Client
	err = backoff.RetryNotify(
		func() error {
			var err error
			client, err = rpc.DialHTTP("tcp", leaderAddr)
			if err != nil {
				return fmt.Errorf("comm: dialing leader %v: %v", leaderAddr, err)
			}
			return nil
		},
		backoff.NewExponentialBackOff(),
		func(err error, d time.Duration) {
			logrus.WithError(err).Warnf("comm: retrying in %v", d)
		},
	)
	if err != nil {
		return nil, err
	}
	var book AddressBook
	req := &JoinRequest{Rank: rank, Addr: advertise(l.Addr().String()), Hostname: c.hostname}
	if err := client.Call("Registry.Join", req, &book); err != nil {
		return nil, fmt.Errorf("comm: joining leader: %v", err)
	}
	c.addrs = book.Addrs
	c.clients[LeaderRank] = client
	return c, nil
}

func newRPC(rank int, l net.Listener) *RPC {
	h, err := os.Hostname()
	if err != nil {
		h = "localhost"
	}
	return &RPC{
		rank:     rank,
		hostname: h,
		box:      newMailbox(),
		listener: l,
		clients:  make(map[int]*rpc.Client),
	}
}

// advertise replaces an unspecified listen host with this host's name.
func advertise(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}
	return net.JoinHostPort(host, port)
}

// Rank returns the rank of this worker.
func (c *RPC) Rank() int { return c.rank }

// Size returns the number of workers.
func (c *RPC) Size() int { return len(c.addrs) }

// Hostname returns the name of the host this worker runs on.
func (c *RPC) Hostname() string { return c.hostname }

func (c *RPC) client(dst int) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[dst]; ok {
		return cl, nil
	}
	var cl *rpc.Client
	err := backoff.RetryNotify(
		func() error {
			var err error
			cl, err = rpc.DialHTTP("tcp", c.addrs[dst])
			return err
		},
		backoff.NewExponentialBackOff(),
		func(err error, d time.Duration) {
			logrus.WithError(err).WithField("rank", dst).Warnf("comm: retrying in %v", d)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("comm: while dialing rank %d at %v: %v", dst, c.addrs[dst], err)
	}
	c.clients[dst] = cl
	return cl, nil
}

// Send delivers v to worker dst.
func (c *RPC) Send(dst, tag int, v interface{}) error {
	if err := checkRank(dst, c.Size()); err != nil {
		return err
	}
	b, err := encode(v)
	if err != nil {
		return fmt.Errorf("comm: encoding message for %d: %v", dst, err)
	}
	if dst == c.rank {
		c.box.put(c.rank, tag, b)
		return nil
	}
	cl, err := c.client(dst)
	if err != nil {
		return err
	}
	return cl.Call("Mailbox.Deliver", &Envelope{Src: c.rank, Tag: tag, Payload: b}, &Empty{})
}

// Recv waits for a message from src and decodes it into v.
func (c *RPC) Recv(src, tag int, v interface{}) error {
	if err := checkRank(src, c.Size()); err != nil {
		return err
	}
	b, err := c.box.take(src, tag)
	if err != nil {
		return err
	}
	return decode(b, v)
}

// Abort fails receives on this worker and, as far as they can be
// reached, on every other worker.
func (c *RPC) Abort(err error) {
	c.box.abort(err)
	msg := err.Error()
	for dst := range c.addrs {
		if dst == c.rank {
			continue
		}
		c.mu.Lock()
		cl, ok := c.clients[dst]
		c.mu.Unlock()
		if !ok {
			var derr error
			if cl, derr = rpc.DialHTTP("tcp", c.addrs[dst]); derr != nil {
				continue
			}
		}
		cl.Call("Mailbox.Abort", &msg, &Empty{})
	}
}

// Close stops listening and closes connections to other workers.
func (c *RPC) Close() error {
	c.mu.Lock()
	for _, cl := range c.clients {
		cl.Close()
	}
	c.clients = make(map[int]*rpc.Client)
	c.mu.Unlock()
	return c.listener.Close()
}
