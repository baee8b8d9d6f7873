// Package httpapi serves contract metadata, one-shot reads and registration
// stages over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"biomesxp.io/internal/abiform"
	"biomesxp.io/internal/chain"
	"biomesxp.io/internal/contracts"
	"biomesxp.io/internal/display"
	"biomesxp.io/internal/stage"
)

// GateReader reads an account's registration gates.
type GateReader interface {
	Gates(ctx context.Context, account common.Address, clientSetup bool) (stage.Gates, error)
}

// TxLister lists recorded transactions, newest first.
type TxLister interface {
	RecentTxs(from common.Address, limit int) ([]chain.TxRecord, error)
}

type Deps struct {
	Contracts *contracts.Registry
	Gates     GateReader
	Txs       TxLister
	Renderer  display.Renderer
	// Stream, when set, is mounted at /v1/stream.
	Stream http.Handler
	Logger *log.Logger
}

type Server struct {
	deps   Deps
	router *mux.Router
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	s := &Server{deps: deps}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Contract endpoints
	r.HandleFunc("/v1/contracts", s.handleContracts).Methods("GET")
	r.HandleFunc("/v1/contracts/{name}/functions", s.handleFunctions).Methods("GET")
	r.HandleFunc("/v1/contracts/{name}/read/{fn}", s.handleRead).Methods("GET")

	// Player endpoints
	r.HandleFunc("/v1/stage/{account}", s.handleStage).Methods("GET")
	r.HandleFunc("/v1/txs", s.handleTxs).Methods("GET")

	if deps.Stream != nil {
		r.Handle("/v1/stream", deps.Stream)
	}
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  "xpd",
		"chain_id": s.deps.Contracts.Network.ChainID,
	})
}

type contractInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	out := []contractInfo{}
	for _, n := range s.deps.Contracts.Deployed() {
		addr, err := s.deps.Contracts.Address(n)
		if err != nil {
			continue
		}
		out = append(out, contractInfo{Name: n, Address: addr.Hex()})
	}
	writeJSON(w, http.StatusOK, out)
}

type functionInfo struct {
	Name            string          `json:"name"`
	Method          string          `json:"method"`
	StateMutability string          `json:"state_mutability"`
	Inputs          []abiform.Param `json:"inputs"`
	Outputs         []abiform.Param `json:"outputs"`
	InheritedFrom   string          `json:"inherited_from,omitempty"`
	Import          string          `json:"import,omitempty"`
}

type catalogBody struct {
	Contract  string         `json:"contract"`
	Variables []functionInfo `json:"variables"`
	Reads     []functionInfo `json:"reads"`
	Writes    []functionInfo `json:"writes"`
}

func functionInfos(fns []abiform.Function) []functionInfo {
	out := make([]functionInfo, 0, len(fns))
	for _, f := range fns {
		fi := functionInfo{
			Name:            f.Name,
			Method:          f.Method,
			StateMutability: f.StateMutability,
			Inputs:          f.Inputs,
			Outputs:         f.Outputs,
			InheritedFrom:   f.InheritedFrom,
		}
		if k := abiform.DetectImport(f); k != abiform.ImportNone {
			fi.Import = k.String()
		}
		out = append(out, fi)
	}
	return out
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	cat, err := contracts.Catalog(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, catalogBody{
		Contract:  name,
		Variables: functionInfos(cat.Variables),
		Reads:     functionInfos(cat.Reads),
		Writes:    functionInfos(cat.Writes),
	})
}

type readBody struct {
	Contract string          `json:"contract"`
	Function string          `json:"function"`
	Kind     string          `json:"kind"`
	Text     string          `json:"text"`
	Value    json.RawMessage `json:"value"`
}

// handleRead calls a view function once. Inputs come from repeated ?arg=
// query parameters in ABI order.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c, err := s.deps.Contracts.Contract(vars["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	fn, ok := c.Form.Function(vars["fn"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown function "+vars["fn"])
		return
	}
	if !fn.IsView() {
		writeError(w, http.StatusBadRequest, fn.Name+" is not a view function")
		return
	}
	form := abiform.NewForm(fn)
	for i, a := range r.URL.Query()["arg"] {
		if err := form.SetInput(i, a); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	args, err := form.Args()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := c.Read(r.Context(), fn.Method, args...)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, chain.ErrNoData) {
			status = http.StatusNotFound
		}
		writeError(w, status, chain.ParseError(err))
		return
	}
	d := display.Classify(v)
	value := display.JSON(v, 0)
	if value == "" {
		value = "null"
	}
	writeJSON(w, http.StatusOK, readBody{
		Contract: c.Name,
		Function: fn.Name,
		Kind:     d.Kind.String(),
		Text:     s.deps.Renderer.Render(d, r.URL.Query().Get("text") == "1"),
		Value:    json.RawMessage(value),
	})
}

type stageBody struct {
	Account string      `json:"account"`
	Stage   stage.Stage `json:"stage"`
	Gates   stage.Gates `json:"gates"`
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["account"]
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid account "+raw)
		return
	}
	if s.deps.Gates == nil {
		writeError(w, http.StatusServiceUnavailable, "registration checks not configured")
		return
	}
	account := common.HexToAddress(raw)
	clientSetup, _ := strconv.ParseBool(r.URL.Query().Get("client_setup"))
	g, err := s.deps.Gates.Gates(r.Context(), account, clientSetup)
	if err != nil {
		s.deps.Logger.Printf("stage %s: %v", account.Hex(), err)
		writeError(w, http.StatusBadGateway, chain.ParseError(err))
		return
	}
	writeJSON(w, http.StatusOK, stageBody{Account: account.Hex(), Stage: stage.Resolve(g), Gates: g})
}

func (s *Server) handleTxs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Txs == nil {
		writeJSON(w, http.StatusOK, []chain.TxRecord{})
		return
	}
	q := r.URL.Query()
	var from common.Address
	if f := q.Get("from"); f != "" {
		if !common.IsHexAddress(f) {
			writeError(w, http.StatusBadRequest, "invalid from "+f)
			return
		}
		from = common.HexToAddress(f)
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	txs, err := s.deps.Txs.RecentTxs(from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txs == nil {
		txs = []chain.TxRecord{}
	}
	writeJSON(w, http.StatusOK, txs)
}
