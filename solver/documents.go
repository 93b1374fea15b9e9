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

package solver

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"strconv"
	"strings"
)

// Document file names in the run directory.
const (
	MaterialsFile = "materials.xml"
	SettingsFile  = "settings.xml"
	TalliesFile   = "tallies.xml"
)

// XMLHeader starts every document.
const XMLHeader = "<?xml version='1.0' encoding='utf-8'?>\n"

// MaterialsHeader and MaterialsFooter enclose the material fragments of
// the materials document.
const (
	MaterialsHeader = XMLHeader + "<materials>\n"
	MaterialsFooter = "</materials>\n"
)

// Material is one element of the materials document.
type Material struct {
	XMLName     xml.Name         `xml:"material"`
	ID          int              `xml:"id,attr"`
	Density     Density          `xml:"density"`
	Temperature float64          `xml:"temperature,omitempty"`
	Nuclides    []NuclideDensity `xml:"nuclide"`
	SAB         []SAB            `xml:"sab"`
}

// Density gives the density units of a material. "sum" means the
// material density is the sum of its nuclide densities.
type Density struct {
	Units string `xml:"units,attr"`
}

// NuclideDensity is a nuclide atom density in atoms/(b·cm).
type NuclideDensity struct {
	Name string  `xml:"name,attr"`
	AO   float64 `xml:"ao,attr"`
}

// SAB references a thermal scattering library. Fraction is omitted when
// it is 1.
type SAB struct {
	Name     string  `xml:"name,attr"`
	Fraction float64 `xml:"fraction,attr,omitempty"`
}

// MaterialFragment serializes materials as consecutive indented
// elements with no document header or footer.
func MaterialFragment(mats []Material) ([]byte, error) {
	var b bytes.Buffer
	for _, m := range mats {
		x, err := xml.MarshalIndent(m, "  ", "  ")
		if err != nil {
			return nil, fmt.Errorf("solver: encoding material %d: %v", m.ID, err)
		}
		b.Write(x)
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

// ReadMaterials parses a materials document.
func ReadMaterials(r io.Reader) ([]Material, error) {
	var doc struct {
		XMLName   xml.Name   `xml:"materials"`
		Materials []Material `xml:"material"`
	}
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("solver: parsing materials: %v", err)
	}
	return doc.Materials, nil
}

// Settings is the run configuration document.
type Settings struct {
	XMLName   xml.Name `xml:"settings"`
	RunMode   string   `xml:"run_mode"`
	Particles int      `xml:"particles"`
	Batches   int      `xml:"batches"`
	Inactive  int      `xml:"inactive"`
	Source    Source   `xml:"source"`
	Mesh      *Mesh    `xml:"mesh,omitempty"`
	Entropy   int      `xml:"entropy_mesh,omitempty"`
	Seed      int64    `xml:"seed"`
}

// Source is a uniform box source.
type Source struct {
	Strength float64 `xml:"strength,attr"`
	Space    struct {
		Type       string `xml:"type,attr"`
		Parameters string `xml:"parameters"`
	} `xml:"space"`
}

// Mesh is a regular mesh used for the source entropy diagnostic.
type Mesh struct {
	ID         int    `xml:"id,attr"`
	Dimension  string `xml:"dimension"`
	LowerLeft  string `xml:"lower_left"`
	UpperRight string `xml:"upper_right"`
}

// NewSettings creates a run configuration with a box source spanning
// lowerLeft to upperRight. A non-empty entropy adds an entropy mesh with
// that many cells per direction over the same box.
func NewSettings(batches, inactive, particles int, lowerLeft, upperRight []float64, entropy []int, seed int64) *Settings {
	s := &Settings{
		RunMode:   "eigenvalue",
		Particles: particles,
		Batches:   batches,
		Inactive:  inactive,
		Seed:      seed,
	}
	s.Source.Strength = 1
	s.Source.Space.Type = "box"
	s.Source.Space.Parameters = joinFloats(append(append([]float64{}, lowerLeft...), upperRight...))
	if len(entropy) > 0 {
		dims := make([]string, len(entropy))
		for i, d := range entropy {
			dims[i] = strconv.Itoa(d)
		}
		s.Mesh = &Mesh{
			ID:         1,
			Dimension:  strings.Join(dims, " "),
			LowerLeft:  joinFloats(lowerLeft),
			UpperRight: joinFloats(upperRight),
		}
		s.Entropy = 1
	}
	return s
}

// Tallies is the tally request document: one tally over a material
// filter.
type Tallies struct {
	XMLName xml.Name `xml:"tallies"`
	Filter  struct {
		ID   int    `xml:"id,attr"`
		Type string `xml:"type,attr"`
		Bins string `xml:"bins"`
	} `xml:"filter"`
	Tally struct {
		ID       int    `xml:"id,attr"`
		Filters  string `xml:"filters"`
		Nuclides string `xml:"nuclides"`
		Scores   string `xml:"scores"`
	} `xml:"tally"`
}

// NewTallies requests, for each material in materials, the rate of every
// reaction in scores for every nuclide in nuclides.
func NewTallies(materials []int, nuclides, scores []string) *Tallies {
	t := new(Tallies)
	bins := make([]string, len(materials))
	for i, m := range materials {
		bins[i] = strconv.Itoa(m)
	}
	t.Filter.ID = 1
	t.Filter.Type = "material"
	t.Filter.Bins = strings.Join(bins, " ")
	t.Tally.ID = 1
	t.Tally.Filters = "1"
	t.Tally.Nuclides = strings.Join(nuclides, " ")
	t.Tally.Scores = strings.Join(scores, " ")
	return t
}

// Materials returns the filter bins.
func (t *Tallies) Materials() ([]int, error) {
	var o []int
	for _, s := range strings.Fields(t.Filter.Bins) {
		id, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("solver: tally filter bin %q: %v", s, err)
		}
		o = append(o, id)
	}
	return o, nil
}

// Nuclides returns the tallied nuclides.
func (t *Tallies) Nuclides() []string { return strings.Fields(t.Tally.Nuclides) }

// Scores returns the tallied reactions.
func (t *Tallies) Scores() []string { return strings.Fields(t.Tally.Scores) }

// WriteDocument writes doc as an indented XML document to path.
func WriteDocument(path string, doc interface{}) error {
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("solver: encoding %s: %v", path, err)
	}
	var buf bytes.Buffer
	buf.WriteString(XMLHeader)
	buf.Write(b)
	buf.WriteByte('\n')
	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("solver: writing %s: %v", path, err)
	}
	return nil
}

// ReadDocument parses the XML document at path into doc.
func ReadDocument(path string, doc interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("solver: opening %s: %v", path, err)
	}
	defer f.Close()
	if err := xml.NewDecoder(f).Decode(doc); err != nil {
		return fmt.Errorf("solver: parsing %s: %v", path, err)
	}
	return nil
}

// RoundSignificant rounds the mantissa m of v = m×10^e to 8 decimal
// places. Non-positive values are returned unchanged.
func RoundSignificant(v float64) float64 {
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	mag := math.Floor(math.Log10(v))
	scale := math.Pow(10, mag)
	m := math.Round(v/scale*1e8) / 1e8
	return m * scale
}

func joinFloats(v []float64) string {
	s := make([]string, len(v))
	for i, f := range v {
		s[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(s, " ")
}
