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

// NodeRank returns the position of c among the workers on its host,
// counting in rank order. It is a collective.
func NodeRank(c Communicator) (int, error) {
	hosts, err := Allgather(c, c.Hostname())
	if err != nil {
		return 0, err
	}
	var r int
	for i := 0; i < c.Rank(); i++ {
		if hosts[i] == hosts[c.Rank()] {
			r++
		}
	}
	return r, nil
}

// NodeTopology returns the number of nodes and the number of workers per
// node. It is a collective.
//
// Leader: receives each follower's node rank (tagTopology), computes the
// topology, then broadcasts nodes and npernode.
// Follower: sends its node rank to the leader (tagTopology), then
// receives nodes and npernode.
func NodeTopology(c Communicator) (nodes, npernode int, err error) {
	nodeRank, err := NodeRank(c)
	if err != nil {
		return 0, 0, err
	}
	switch RoleOf(c) {
	case Leader:
		ranks := make([]int, c.Size())
		ranks[LeaderRank] = nodeRank
		for src := 1; src < c.Size(); src++ {
			if err := c.Recv(src, tagTopology, &ranks[src]); err != nil {
				return 0, 0, fmt.Errorf("comm: topology from %d: %v", src, err)
			}
		}
		nodes, npernode = topology(ranks)
	default:
		if err := c.Send(LeaderRank, tagTopology, nodeRank); err != nil {
			return 0, 0, fmt.Errorf("comm: topology to leader: %v", err)
		}
	}
	if nodes, err = Bcast(c, nodes); err != nil {
		return 0, 0, err
	}
	if npernode, err = Bcast(c, npernode); err != nil {
		return 0, 0, err
	}
	return nodes, npernode, Barrier(c)
}

// topology derives the node layout from the node rank of every worker.
// quantity[k] is the number of workers with node rank k. Starting from
// node rank 0, the largest block of equal quantities gives the number of
// workers per node, and its quantity gives the number of nodes.
func topology(nodeRanks []int) (nodes, npernode int) {
	if len(nodeRanks) == 0 {
		return 0, 0
	}
	top := 0
	for _, r := range nodeRanks {
		if r > top {
			top = r
		}
	}
	quantity := make([]int, top+1)
	for _, r := range nodeRanks {
		quantity[r]++
	}
	j := 1
	for i := 1; i < len(quantity); i++ {
		if quantity[i-1] != quantity[i] {
			break
		}
		j = i + 1
	}
	return quantity[j-1], j
}
