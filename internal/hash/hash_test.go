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

package hash

import "testing"

func TestHash(t *testing.T) {
	a := Hash([]string{"U235", "U238", "Xe135"})
	b := Hash([]string{"U235", "U238", "Xe135"})
	c := Hash([]string{"U238", "U235", "Xe135"})
	if a != b {
		t.Errorf("equal inputs hash differently: %s, %s", a, b)
	}
	if a == c {
		t.Errorf("reordered inputs hash the same: %s", a)
	}
	if len(a) != 32 {
		t.Errorf("key %q should be 32 hex digits", a)
	}
}

func TestMismatch(t *testing.T) {
	tests := []struct {
		keys []string
		want int
	}{
		{keys: []string{"a", "a", "a"}, want: -1},
		{keys: []string{"a", "a", "b"}, want: 2},
		{keys: []string{"a"}, want: -1},
		{keys: nil, want: -1},
	}
	for _, test := range tests {
		if have := Mismatch(test.keys); have != test.want {
			t.Errorf("Mismatch(%v) = %d, want %d", test.keys, have, test.want)
		}
	}
}
