// Package apitest runs an in-memory stand-in for the wallet REST API, for tests only.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const basePath = "/api/v1"

// Route names used by Fail and Hits.
const (
	RouteLogin        = "login"
	RouteRegister     = "register"
	RouteProfile      = "profile"
	RouteTransactions = "transactions"
	RouteCreate       = "create"
)

type User struct {
	ID        string
	FullName  string
	Email     string
	Password  string
	AccountNo string
	Balance   int64
}

type transaction struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	FromTo      string    `json:"from_to"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type failure struct {
	status  int
	message string
}

type Server struct {
	srv *httptest.Server

	mu           sync.Mutex
	users        map[string]*User // by email
	tokens       map[string]string
	transactions map[string][]transaction
	nextTxID     int64
	failures     map[string]failure
	hits         map[string]int
	delay        time.Duration
	now          func() time.Time
}

func NewServer() *Server {
	s := &Server{
		users:        make(map[string]*User),
		tokens:       make(map[string]string),
		transactions: make(map[string][]transaction),
		failures:     make(map[string]failure),
		hits:         make(map[string]int),
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}

	r := mux.NewRouter()
	api := r.PathPrefix(basePath).Subrouter()
	api.HandleFunc("/auth/login", s.wrap(RouteLogin, s.login)).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.wrap(RouteRegister, s.register)).Methods(http.MethodPost)
	api.HandleFunc("/users/me", s.wrap(RouteProfile, s.authed(s.profile))).Methods(http.MethodGet)
	api.HandleFunc("/transactions/", s.wrap(RouteTransactions, s.authed(s.listTransactions))).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.wrap(RouteCreate, s.authed(s.createTransaction))).Methods(http.MethodPost)

	s.srv = httptest.NewServer(r)
	return s
}

// URL is the API base URL, to be used as client base URL.
func (s *Server) URL() string { return s.srv.URL + basePath }

func (s *Server) Close() { s.srv.Close() }

func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.Email] = &u
}

// Balance returns the server-side balance of the user.
func (s *Server) Balance(email string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[email].Balance
}

// Fail makes every request to route answer with status and message until Recover is called.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, message: message}
}

func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Hits counts requests that reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// SetDelay holds every response for d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// IssueToken logs email in without going through /auth/login.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = email
	return token
}

// AddTransaction records a transaction without touching the balance.
func (s *Server) AddTransaction(email, txType, fromTo string, amount int64, desc string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxID++
	s.transactions[email] = append(s.transactions[email], transaction{
		ID: s.nextTxID, Type: txType, FromTo: fromTo, Amount: amount, Description: desc, CreatedAt: at,
	})
}

type handler func(w http.ResponseWriter, r *http.Request, email string)

func (s *Server) wrap(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		f, failing := s.failures[route]
		delay := s.delay
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeJSON(w, f.status, map[string]string{"message": f.message})
			return
		}
		next(w, r)
	}
}

func (s *Server) authed(next handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, known := s.tokens[token]
		s.mu.Unlock()
		if !ok || !known {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next(w, r, email)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	if !ok || u.Password != req.Password {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}
	token := uuid.NewString()
	s.tokens[token] = u.Email
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"token": token}})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName  string `json:"full_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "email already registered"})
		return
	}
	id := uuid.NewString()
	s.users[req.Email] = &User{
		ID:        id,
		FullName:  req.FullName,
		Email:     req.Email,
		Password:  req.Password,
		AccountNo: id[:8],
	}

	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]string{"id": id, "email": req.Email}})
}

func (s *Server) profile(w http.ResponseWriter, _ *http.Request, email string) {
	s.mu.Lock()
	u := *s.users[email]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":         u.ID,
		"full_name":  u.FullName,
		"email":      u.Email,
		"account_no": u.AccountNo,
		"balance":    u.Balance,
	}})
}

func (s *Server) listTransactions(w http.ResponseWriter, _ *http.Request, email string) {
	s.mu.Lock()
	list := append([]transaction{}, s.transactions[email]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request, email string) {
	var req struct {
		Type        string `json:"type"`
		FromTo      string `json:"from_to"`
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request"})
		return
	}
	if req.Amount <= 0 || (req.Type != "c" && req.Type != "d") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid transaction"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[email]
	if req.Type == "d" {
		if u.Balance < req.Amount {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "insufficient balance"})
			return
		}
		u.Balance -= req.Amount
	} else {
		u.Balance += req.Amount
	}

	s.nextTxID++
	tx := transaction{
		ID:          s.nextTxID,
		Type:        req.Type,
		FromTo:      req.FromTo,
		Amount:      req.Amount,
		Description: req.Description,
		CreatedAt:   s.now(),
	}
	s.transactions[email] = append(s.transactions[email], tx)

	writeJSON(w, http.StatusCreated, map[string]any{"data": tx})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
