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

package depcouple

import (
	"reflect"
	"strings"
	"testing"
)

func TestParticipating(t *testing.T) {
	chain, err := LoadDecayChain("testdata/chain_ab.xml")
	if err != nil {
		t.Fatal(err)
	}
	p, err := LoadParticipating("testdata/cross_sections_ac.xml", chain)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.Names(), []string{"A", "C"}) {
		t.Errorf("participating %v", p.Names())
	}
	if !reflect.DeepEqual(p.BurnNuclides(), []string{"A"}) {
		t.Errorf("burn nuclides %v", p.BurnNuclides())
	}
	if !p.Contains("C") || p.Contains("B") {
		t.Error("Contains")
	}
}

func TestParticipatingOrder(t *testing.T) {
	chain := loadTestChain(t)
	p, err := LoadParticipating("testdata/cross_sections.xml", chain)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"U234", "U235", "U238", "Xe135", "Xe136", "Gd157", "Gd156"}
	if !reflect.DeepEqual(p.BurnNuclides(), want) {
		t.Errorf("have %v, want %v", p.BurnNuclides(), want)
	}
	if !p.Contains("c_H_in_H2O") || !p.Contains("H1") {
		t.Error("every listed name participates")
	}
}

func TestParticipatingErrors(t *testing.T) {
	chain := loadTestChain(t)
	_, err := LoadParticipating("", chain)
	if err == nil || !strings.Contains(err.Error(), CrossSectionsEnv) {
		t.Errorf("error should name $%s: %v", CrossSectionsEnv, err)
	}
	_, err = LoadParticipating("testdata/missing.xml", chain)
	if err == nil || !strings.Contains(err.Error(), `"testdata/missing.xml" is invalid`) {
		t.Errorf("error should name the file: %v", err)
	}
	_, err = LoadParticipating("testdata/geometry.toml", chain)
	if err == nil || !strings.Contains(err.Error(), "is invalid") {
		t.Errorf("error should say the file is invalid: %v", err)
	}
}
