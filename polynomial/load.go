package polynomial

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Load decodes a polynomial from JSON and validates it.
//
// A missing vartype means BINARY. A missing or zero num_variables is inferred
// from the largest variable index.
//
//	{"vartype": "BINARY", "num_variables": 3,
//	 "terms": [{"vars": [0, 1], "value": -1}, {"vars": [0, 1, 2], "value": 2}]}
func Load(r io.Reader) (Polynomial, error) {
	var p Polynomial

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&p); err != nil {
		return Polynomial{}, fmt.Errorf("decoding polynomial: %w", err)
	}

	if p.VarType == "" {
		p.VarType = Binary
	}

	if p.NumVariables == 0 {
		for _, t := range p.Terms {
			for _, v := range t.Vars {
				p.NumVariables = max(p.NumVariables, v+1)
			}
		}
	}

	if err := p.Validate(); err != nil {
		return Polynomial{}, err
	}

	return p, nil
}

// LoadFile loads a polynomial from a JSON file.
func LoadFile(path string) (Polynomial, error) {
	f, err := os.Open(path)
	if err != nil {
		return Polynomial{}, err
	}
	defer f.Close()

	p, err := Load(f)
	if err != nil {
		return Polynomial{}, fmt.Errorf("%s: %w", path, err)
	}

	return p, nil
}
