package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/export"
	"shopledger/backend/internal/mailer"
	"shopledger/backend/internal/service"
	"shopledger/backend/internal/store"
)

const excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type API struct {
	service       *service.Service
	auth          *AuthManager
	mail          mailer.Mailer
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, mail mailer.Mailer, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if mail == nil {
		mail = mailer.Noop{}
	}
	return &API{
		service:       svc,
		auth:          auth,
		mail:          mail,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("/api/v1/auth/signup", a.requireAuth(a.handleSignup, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/inventory", a.requireAuth(a.handleInventory, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/inventory/search", a.requireAuth(a.handleInventorySearch, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/inventory/", a.requireAuth(a.handleInventoryActions, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/customers/", a.requireAuth(a.handleCustomerActions, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, domain.RoleStaff, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/reports/", a.requireAuth(a.handleReports, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := a.auth.Signup(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods
// (POST/PUT/PATCH/DELETE). Returns false and writes an error response if
// validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page := parsePositiveLimit(r.URL.Query().Get("page"), 1, 0)
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 20, 100)
		list, err := a.service.ListItems(r.Context(), page, limit)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req domain.ItemCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.CreateItem(r.Context(), req)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInventorySearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	items, err := a.service.SearchItems(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleInventoryActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTail(w, r, "/api/v1/inventory/", "item id required")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := a.service.GetItem(r.Context(), id)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodPut, http.MethodPatch:
		var req domain.ItemUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.UpdateItem(r.Context(), id, req)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodDelete:
		if !requireRole(w, r, domain.RoleAdmin) {
			return
		}
		if err := a.service.DeleteItem(r.Context(), id); err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page := parsePositiveLimit(r.URL.Query().Get("page"), 1, 0)
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 20, 100)
		list, err := a.service.ListCustomers(r.Context(), page, limit, r.URL.Query().Get("search"))
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.CreateCustomer(r.Context(), req)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTail(w, r, "/api/v1/customers/", "customer id required")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), id)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodPut, http.MethodPatch:
		var req domain.CustomerUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.UpdateCustomer(r.Context(), id, req)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodDelete:
		if !requireRole(w, r, domain.RoleAdmin) {
			return
		}
		if err := a.service.DeleteCustomer(r.Context(), id); err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, err := saleFilterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		list, err := a.service.ListSales(r.Context(), filter)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.CreateSale(r.Context(), req)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTail(w, r, "/api/v1/sales/", "sale id required")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		sale, err := a.service.GetSale(r.Context(), id)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodPut, http.MethodPatch:
		var req domain.SaleUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			// Unknown fields are rejected here, which is what keeps
			// committed line items and customer snapshots immutable
			// over the HTTP surface.
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.UpdateSale(r.Context(), id, req)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodDelete:
		if !requireRole(w, r, domain.RoleAdmin) {
			return
		}
		sale, err := a.service.DeleteSale(r.Context(), id)
		if err != nil {
			writeError(w, statusFromError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/reports/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("report name required"))
		return
	}

	base, format := splitReportFormat(tail)
	switch {
	case base == "sales":
		a.handleSalesReport(w, r, format)
	case base == "items":
		a.handleItemsReport(w, r, format)
	case strings.HasPrefix(base, "customers/"):
		customerID := strings.TrimPrefix(base, "customers/")
		if customerID == "" || strings.Contains(customerID, "/") {
			writeError(w, http.StatusBadRequest, errors.New("customer id required"))
			return
		}
		a.handleCustomerLedger(w, r, customerID, format)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown report"))
	}
}

// splitReportFormat peels a trailing export/email segment off a report
// path: "sales/export.xlsx" -> ("sales", "xlsx").
func splitReportFormat(tail string) (string, string) {
	for _, suffix := range []string{"/export.xlsx", "/export.html", "/email"} {
		if strings.HasSuffix(tail, suffix) {
			base := strings.TrimSuffix(tail, suffix)
			switch suffix {
			case "/export.xlsx":
				return base, "xlsx"
			case "/export.html":
				return base, "html"
			default:
				return base, "email"
			}
		}
	}
	return tail, ""
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request, format string) {
	if format == "email" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
	} else if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	filter, err := saleFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := a.service.SalesReport(r.Context(), filter, r.URL.Query().Get("group_by"))
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	switch format {
	case "":
		writeJSON(w, http.StatusOK, report)
	case "xlsx":
		payload, err := export.SalesReportExcel(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeAttachment(w, export.Filename("sales", "xlsx"), excelContentType, payload)
	case "html":
		payload, err := export.SalesReportHTML(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeHTML(w, payload)
	case "email":
		payload, err := export.SalesReportExcel(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.emailReport(w, r, "Sales report", export.Filename("sales", "xlsx"), payload)
	}
}

func (a *API) handleItemsReport(w http.ResponseWriter, r *http.Request, format string) {
	if format == "email" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
	} else if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	report, err := a.service.ItemsReport(r.Context())
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	switch format {
	case "":
		writeJSON(w, http.StatusOK, report)
	case "xlsx":
		payload, err := export.ItemsReportExcel(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeAttachment(w, export.Filename("inventory", "xlsx"), excelContentType, payload)
	case "html":
		payload, err := export.ItemsReportHTML(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeHTML(w, payload)
	case "email":
		payload, err := export.ItemsReportExcel(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.emailReport(w, r, "Inventory report", export.Filename("inventory", "xlsx"), payload)
	}
}

func (a *API) handleCustomerLedger(w http.ResponseWriter, r *http.Request, customerID string, format string) {
	if format == "email" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
	} else if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ledger, err := a.service.CustomerLedger(r.Context(), customerID, from, to)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	switch format {
	case "":
		writeJSON(w, http.StatusOK, ledger)
	case "xlsx":
		payload, err := export.CustomerLedgerExcel(ledger)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeAttachment(w, export.Filename("customer-ledger", "xlsx"), excelContentType, payload)
	case "html":
		payload, err := export.CustomerLedgerHTML(ledger)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeHTML(w, payload)
	case "email":
		payload, err := export.CustomerLedgerExcel(ledger)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.emailReport(w, r, "Customer ledger: "+ledger.Customer.Name, export.Filename("customer-ledger", "xlsx"), payload)
	}
}

func (a *API) emailReport(w http.ResponseWriter, r *http.Request, defaultSubject string, filename string, attachment []byte) {
	var req domain.EmailReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.To) == "" || !strings.Contains(req.To, "@") {
		writeError(w, http.StatusBadRequest, errors.New("valid recipient address required"))
		return
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		text = "Attached: " + filename
	}

	messageID, err := a.mail.Send(r.Context(), mailer.Message{
		To:      req.To,
		Subject: subject,
		Text:    text,
		Attachments: []mailer.Attachment{{
			Filename:    filename,
			ContentType: excelContentType,
			Data:        attachment,
		}},
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.EmailReportResponse{Sent: true, MessageID: messageID})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500)

	fromTime, toTime := time.Time{}, time.Time{}
	if from != nil {
		fromTime = *from
	}
	if to != nil {
		toTime = *to
	}

	logs, err := a.service.ListAuditLogs(r.Context(), fromTime, toTime, limit)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || !isRoleAllowed(actor.Role, roles) {
		writeError(w, http.StatusForbidden, errors.New("forbidden role"))
		return false
	}
	return true
}

func pathTail(w http.ResponseWriter, r *http.Request, prefix string, missing string) (string, bool) {
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid path"))
		return "", false
	}
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" || strings.Contains(tail, "/") {
		writeError(w, http.StatusBadRequest, errors.New(missing))
		return "", false
	}
	return tail, true
}

func saleFilterFromQuery(r *http.Request) (domain.SaleFilter, error) {
	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		return domain.SaleFilter{}, err
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		return domain.SaleFilter{}, err
	}
	return domain.SaleFilter{
		From:       from,
		To:         to,
		CustomerID: strings.TrimSpace(r.URL.Query().Get("customer_id")),
		ItemID:     strings.TrimSpace(r.URL.Query().Get("item_id")),
		Page:       parsePositiveLimit(r.URL.Query().Get("page"), 1, 0),
		Limit:      parsePositiveLimit(r.URL.Query().Get("limit"), 20, 100),
	}, nil
}

// parseTimeParam accepts RFC3339 timestamps or bare dates ("2006-01-02").
func parseTimeParam(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	if parsed, err := time.Parse("2006-01-02", trimmed); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	return nil, fmt.Errorf("invalid time %q, want RFC3339 or YYYY-MM-DD", trimmed)
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeHTML(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeAttachment(w http.ResponseWriter, filename string, contentType string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
