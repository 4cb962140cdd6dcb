// Package api serves a mountain range over HTTP.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-mountainrange/checkpoint"
	"github.com/forestrie/go-mountainrange/mmr"
	"github.com/forestrie/go-mountainrange/mountainrange"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
)

const maxBodyBytes = 1 << 20

// leafHasher derives a leaf value from arbitrary data
type leafHasher interface {
	Sum(data []byte) []byte
}

type Server struct {
	log    logger.Logger
	store  *mountainrange.Store
	ledger *checkpoint.Ledger
	leaves leafHasher
}

type ServerOptions struct {
	// Ledger, if set, verifies proofs made at earlier sizes.
	Ledger *checkpoint.Ledger
	// Gatherer, if set, is served on /metrics.
	Gatherer prometheus.Gatherer
	// Leaves, if set, allows appending raw data which it hashes to a leaf.
	Leaves leafHasher
}

// NewRouter returns the routes for store. Routes are registered on r if it
// is not nil.
func NewRouter(log logger.Logger, store *mountainrange.Store, opts ServerOptions, r *mux.Router) *mux.Router {
	if r == nil {
		r = mux.NewRouter()
	}
	s := &Server{
		log:    log,
		store:  store,
		ledger: opts.Ledger,
		leaves: opts.Leaves,
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/leaves", s.appendHandler).Methods("POST")
	v1.HandleFunc("/peaks", s.peaksHandler).Methods("GET")
	v1.HandleFunc("/root", s.rootHandler).Methods("GET")
	v1.HandleFunc("/nodes/{pos:[0-9]+}", s.nodeHandler).Methods("GET")
	v1.HandleFunc("/proofs/{pos:[0-9]+}", s.proofHandler).Methods("GET")
	v1.HandleFunc("/consistency/{sizeA:[0-9]+}", s.consistencyHandler).Methods("GET")
	v1.HandleFunc("/verify", s.verifyHandler).Methods("POST")
	v1.HandleFunc("/clear", s.clearHandler).Methods("POST")
	v1.HandleFunc("/journal", s.journalHandler).Methods("GET")
	v1.HandleFunc("/checkpoints/latest", s.checkpointHandler).Methods("GET")

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Infof("writing response: %v", err)
	}
}

type errorJSON struct {
	Error string `json:"error"`
}

// writeError maps the package errors to a status
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mmr.ErrInvalidIndex), errors.Is(err, checkpoint.ErrNoCommitment):
		status = http.StatusNotFound
	case errors.Is(err, mmr.ErrInvalidValue), errors.Is(err, mmr.ErrMalformedProof),
		errors.Is(err, mmr.ErrInvalidSize), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, mountainrange.ErrStaleProof):
		status = http.StatusConflict
	case errors.Is(err, mountainrange.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Infof("request failed: %v", err)
	}
	s.writeJSON(w, status, errorJSON{Error: err.Error()})
}

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

func readBody(r *http.Request) (gjson.Result, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, badRequest(errors.New("body is not valid json"))
	}
	return gjson.ParseBytes(body), nil
}

func pathUint(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, badRequest(err)
	}
	return v, nil
}

// appendHandler accepts {"value": hex}, {"values": [hex, ...]} or, when a
// leaf hasher is configured, {"data": string} which is hashed to the leaf.
func (s *Server) appendHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var values [][]byte
	switch {
	case body.Get("values").Exists():
		values, err = decodeHexList(body.Get("values"), "values")
	case body.Get("data").Exists():
		if s.leaves == nil {
			err = errors.New("data is not accepted, send a hex value")
			break
		}
		values = [][]byte{s.leaves.Sum([]byte(body.Get("data").String()))}
	default:
		var v []byte
		v, err = decodeHex(body.Get("value"), "value")
		values = [][]byte{v}
	}
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	results := make([]appendJSON, 0, len(values))
	for _, v := range values {
		res, err := s.store.Append(r.Context(), v)
		if err != nil {
			s.writeError(w, err)
			return
		}
		results = append(results, appendJSON{
			LeavesCount:   res.LeavesCount,
			ElementsCount: res.ElementsCount,
			ElementIndex:  res.ElementIndex,
			Root:          hex.EncodeToString(res.Root),
		})
	}
	if len(results) == 1 {
		s.writeJSON(w, http.StatusCreated, results[0])
		return
	}
	s.writeJSON(w, http.StatusCreated, results)
}

func (s *Server) peaksHandler(w http.ResponseWriter, r *http.Request) {
	state := s.store.State()
	out := encodeState(s.store.LogID().String(), state)
	out.Peaks = hexList(state.Peaks)
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, encodeState(s.store.LogID().String(), s.store.State()))
}

func (s *Server) nodeHandler(w http.ResponseWriter, r *http.Request) {
	pos, err := pathUint(r, "pos")
	if err != nil {
		s.writeError(w, err)
		return
	}
	value, err := s.store.Get(pos)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pos": pos, "value": hex.EncodeToString(value)})
}

func (s *Server) proofHandler(w http.ResponseWriter, r *http.Request) {
	pos, err := pathUint(r, "pos")
	if err != nil {
		s.writeError(w, err)
		return
	}
	proof, err := s.store.GetProof(pos)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, encodeProof(proof))
}

func (s *Server) consistencyHandler(w http.ResponseWriter, r *http.Request) {
	sizeA, err := pathUint(r, "sizeA")
	if err != nil {
		s.writeError(w, err)
		return
	}
	proof, err := s.store.GetConsistencyProof(sizeA)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, encodeConsistency(proof))
}

// verifyHandler accepts {"value": hex, "proof": {...}}. A proof for an
// earlier size is checked against the ledger when there is one.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	value, err := decodeHex(body.Get("value"), "value")
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	proof, err := decodeProof(body.Get("proof"))
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	ok, err := s.store.VerifyProof(value, proof)
	if errors.Is(err, mountainrange.ErrStaleProof) && s.ledger != nil {
		ok, err = s.ledger.VerifyProof(value, proof)
		if err == nil {
			s.writeJSON(w, http.StatusOK, verifyJSON{Verified: ok, Historical: true})
			return
		}
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verifyJSON{Verified: ok})
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, encodeState(s.store.LogID().String(), s.store.State()))
}

// journalHandler lists journal entries after the id given by ?after=
func (s *Server) journalHandler(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		var err error
		if after, err = strconv.ParseUint(v, 10, 64); err != nil {
			s.writeError(w, badRequest(err))
			return
		}
	}
	s.writeJSON(w, http.StatusOK, encodeEntries(s.store.Journal().Since(after)))
}

func (s *Server) checkpointHandler(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeError(w, fmt.Errorf("%w: no ledger is configured", checkpoint.ErrNoCommitment))
		return
	}
	state, ok := s.ledger.Latest()
	if !ok {
		s.writeError(w, checkpoint.ErrNoCommitment)
		return
	}
	s.writeJSON(w, http.StatusOK, encodeCheckpoint(state))
}
