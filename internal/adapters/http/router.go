package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/ports"
	"github.com/kirillkom/hybrid-doc-qa/internal/observability/metrics"
)

type Router struct {
	ingestUC  ports.DocumentIngestor
	queryUC   ports.DocumentQueryService
	chatUC    ports.ChatService
	reader    ports.DocumentReader
	retrieval ports.RetrievalFacade
	metrics   *metrics.ServerMetrics
}

func NewRouter(
	ingestUC ports.DocumentIngestor,
	queryUC ports.DocumentQueryService,
	chatUC ports.ChatService,
	reader ports.DocumentReader,
	retrieval ports.RetrievalFacade,
	serverMetrics *metrics.ServerMetrics,
) *Router {
	return &Router{
		ingestUC:  ingestUC,
		queryUC:   queryUC,
		chatUC:    chatUC,
		reader:    reader,
		retrieval: retrieval,
		metrics:   serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/rag/query", rt.queryRAG)
	mux.HandleFunc("/v1/chat", rt.chat)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	case http.MethodDelete:
		rt.clearAll(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusAccepted
	if doc.Status == domain.StatusDuplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": rt.reader.List(r.Context()),
	})
}

func (rt *Router) clearAll(w http.ResponseWriter, r *http.Request) {
	rt.retrieval.ClearAll(r.Context())
	rt.chatUC.ClearSessions()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	answer, err := rt.queryUC.Answer(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	history, err := rt.chatUC.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"history":    history,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
