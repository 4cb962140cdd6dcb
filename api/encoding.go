package api

import (
	"encoding/hex"
	"fmt"

	"github.com/forestrie/go-mountainrange/checkpoint"
	"github.com/forestrie/go-mountainrange/mmr"
	"github.com/forestrie/go-mountainrange/mountainrange"
	"github.com/tidwall/gjson"
)

// Hashes are hex encoded on the wire

type proofJSON struct {
	ElementIndex  uint64   `json:"elementIndex"`
	ElementHash   string   `json:"elementHash"`
	Siblings      []string `json:"siblings"`
	Peaks         []string `json:"peaks"`
	ElementsCount uint64   `json:"elementsCount"`
}

type consistencyJSON struct {
	SizeA  uint64     `json:"sizeA"`
	SizeB  uint64     `json:"sizeB"`
	Paths  [][]string `json:"paths"`
	PeaksB []string   `json:"peaksB"`
}

type stateJSON struct {
	LogID         string   `json:"logId"`
	LeavesCount   uint64   `json:"leavesCount"`
	ElementsCount uint64   `json:"elementsCount"`
	Root          string   `json:"root"`
	Peaks         []string `json:"peaks,omitempty"`
}

type appendJSON struct {
	LeavesCount   uint64 `json:"leavesCount"`
	ElementsCount uint64 `json:"elementsCount"`
	ElementIndex  uint64 `json:"elementIndex"`
	Root          string `json:"root"`
}

type entryJSON struct {
	ID            uint64 `json:"id"`
	Op            string `json:"op"`
	LeavesCount   uint64 `json:"leavesCount"`
	ElementsCount uint64 `json:"elementsCount"`
	Root          string `json:"root"`
}

type verifyJSON struct {
	Verified bool `json:"verified"`
	// Historical is set when the proof was checked against a root archived
	// for its size rather than the current root.
	Historical bool `json:"historical,omitempty"`
}

func hexList(values [][]byte) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = hex.EncodeToString(v)
	}
	return out
}

func encodeProof(p mmr.Proof) proofJSON {
	return proofJSON{
		ElementIndex:  p.ElementIndex,
		ElementHash:   hex.EncodeToString(p.ElementHash),
		Siblings:      hexList(p.Siblings),
		Peaks:         hexList(p.Peaks),
		ElementsCount: p.ElementsCount,
	}
}

func encodeConsistency(p mmr.ConsistencyProof) consistencyJSON {
	paths := make([][]string, len(p.Paths))
	for i, path := range p.Paths {
		paths[i] = hexList(path)
	}
	return consistencyJSON{
		SizeA:  p.SizeA,
		SizeB:  p.SizeB,
		Paths:  paths,
		PeaksB: hexList(p.PeaksB),
	}
}

func encodeState(logID string, s mountainrange.State) stateJSON {
	return stateJSON{
		LogID:         logID,
		LeavesCount:   s.LeavesCount,
		ElementsCount: s.ElementsCount,
		Root:          hex.EncodeToString(s.Root),
	}
}

func encodeEntries(entries []mountainrange.Entry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = entryJSON{
			ID:            e.ID,
			Op:            e.Op.String(),
			LeavesCount:   e.LeavesCount,
			ElementsCount: e.ElementsCount,
			Root:          hex.EncodeToString(e.Root),
		}
	}
	return out
}

func encodeCheckpoint(s checkpoint.MMRState) stateJSON {
	return stateJSON{
		LogID:         s.LogID,
		LeavesCount:   mmr.LeafCount(s.MMRSize),
		ElementsCount: s.MMRSize,
		Root:          hex.EncodeToString(s.Root),
		Peaks:         hexList(s.Peaks),
	}
}

func decodeHex(r gjson.Result, field string) ([]byte, error) {
	if !r.Exists() {
		return nil, fmt.Errorf("%s is required", field)
	}
	if r.Type != gjson.String {
		return nil, fmt.Errorf("%s must be a hex string", field)
	}
	b, err := hex.DecodeString(r.Str)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return b, nil
}

func decodeHexList(r gjson.Result, field string) ([][]byte, error) {
	if !r.Exists() {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("%s must be an array", field)
	}
	var out [][]byte
	var err error
	r.ForEach(func(i, v gjson.Result) bool {
		var b []byte
		if b, err = decodeHex(v, fmt.Sprintf("%s[%d]", field, i.Int())); err != nil {
			return false
		}
		out = append(out, b)
		return true
	})
	return out, err
}

// decodeProof reads a proof in the form encodeProof writes
func decodeProof(r gjson.Result) (mmr.Proof, error) {
	if !r.IsObject() {
		return mmr.Proof{}, fmt.Errorf("proof must be an object")
	}
	var p mmr.Proof
	var err error

	p.ElementIndex = r.Get("elementIndex").Uint()
	p.ElementsCount = r.Get("elementsCount").Uint()
	if h := r.Get("elementHash"); h.Exists() && h.Str != "" {
		if p.ElementHash, err = decodeHex(h, "elementHash"); err != nil {
			return mmr.Proof{}, err
		}
	}
	if p.Siblings, err = decodeHexList(r.Get("siblings"), "siblings"); err != nil {
		return mmr.Proof{}, err
	}
	if p.Peaks, err = decodeHexList(r.Get("peaks"), "peaks"); err != nil {
		return mmr.Proof{}, err
	}
	return p, nil
}

// DecodeProof reads a proof in the JSON form served by GET /v1/proofs/{pos}
func DecodeProof(data []byte) (mmr.Proof, error) {
	if !gjson.ValidBytes(data) {
		return mmr.Proof{}, fmt.Errorf("proof is not valid json")
	}
	return decodeProof(gjson.ParseBytes(data))
}
